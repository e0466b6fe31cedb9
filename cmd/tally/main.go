// tally is a labeling workbench: load a dataset, review it one record at a
// time in a browser, a terminal or through an MCP client, then export or
// upload the annotations to Argilla.
//
// Usage:
//
//	tally serve   [--addr=127.0.0.1:8501]
//	tally review  --dataset=<file> --type=<question> [--labels=a,b]
//	tally inspect <file> [-n 5]
//	tally export  --session=<name> [--format=csv|jsonl|table] [-o <file>]
//	tally upload  --session=<name> | --from=<file.jsonl> [--url ...]
//	tally sessions
//	tally mcp
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tally/internal/config"
	"tally/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries the root flags and the configuration they resolve to.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	noDB       bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tally",
		Short: "Review a dataset record by record and collect annotations",
		Long: `tally loads a CSV, TSV or JSONL dataset, asks one question of every record
(label, multi-label, rating, ranking, span or free text) and records the
answers. Annotations are journaled per session, can be exported as CSV or
JSONL, and can be uploaded to an Argilla server.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.Version = version

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "configuration file (YAML or JSON); tally.yaml is used when present")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error, silent")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	pf.BoolVar(&a.noDB, "no-db", false, "keep sessions in memory instead of the SQLite journal")

	root.AddCommand(
		newServeCmd(a),
		newReviewCmd(a),
		newInspectCmd(a),
		newExportCmd(a),
		newUploadCmd(a),
		newSessionsCmd(a),
		newMCPCmd(a),
	)
	return root
}

// defaultConfigFiles are tried in order when --config is not given.
var defaultConfigFiles = []string{"tally.yaml", "tally.yml", "tally.json"}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.noDB {
		cfg.Store.Disabled = true
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
	a.cfg = cfg
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	for _, name := range defaultConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return config.LoadFromPath(filepath.Clean(name))
		}
	}
	return config.Default(), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

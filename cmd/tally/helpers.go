package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"tally/internal/config"
	"tally/internal/dataset"
	"tally/internal/logging"
	"tally/internal/schema"
	"tally/internal/store"
	"tally/internal/upload"
	"tally/internal/workbench"
)

// openStore opens the session journal, or an in-memory store when the
// journal is disabled.
func (a *app) openStore() (store.Store, error) {
	if a.cfg.Store.Disabled {
		return store.NewMemStore(), nil
	}
	st, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// uploader builds the Argilla uploader in the configured mode.
func (a *app) uploader() (*upload.ArgillaUploader, error) {
	mode, err := a.cfg.UploadMode()
	if err != nil {
		return nil, err
	}
	u := upload.NewArgillaUploader()
	u.Mode = mode
	u.Logger = logging.New("upload")
	return u, nil
}

// openWorkbench loads the configured dataset and opens a session on it.
func (a *app) openWorkbench(ctx context.Context, st store.Store, up upload.Uploader) (*workbench.Workbench, error) {
	cfg := a.cfg
	if cfg.Dataset.Path == "" {
		return nil, fmt.Errorf("no dataset: pass --dataset or set dataset.path in the config")
	}
	var f dataset.Format
	if cfg.Dataset.Format != "" {
		var err error
		if f, err = dataset.ParseFormat(cfg.Dataset.Format); err != nil {
			return nil, err
		}
	}
	ds, err := dataset.LoadFile(cfg.Dataset.Path, f)
	if err != nil {
		return nil, err
	}
	sc, err := cfg.SchemaConfig()
	if err != nil {
		return nil, err
	}
	d, err := schema.Build(sc)
	if err != nil {
		return nil, err
	}
	return workbench.Open(ctx, workbench.Options{
		Dataset:     ds,
		DatasetPath: cfg.Dataset.Path,
		TextField:   cfg.Dataset.TextField,
		Schema:      d,
		Name:        cfg.Session,
		Store:       st,
		Uploader:    up,
		Logger:      logging.New("workbench"),
	})
}

// sessionFlags override the dataset and question sections of the config.
type sessionFlags struct {
	session    string
	dataset    string
	format     string
	textField  string
	qtype      string
	labels     []string
	ratingMin  int
	ratingMax  int
	overlap    bool
	guidelines string
}

func (s *sessionFlags) register(f *pflag.FlagSet) {
	f.StringVar(&s.session, "session", "", "session name; a stored session with this name is resumed")
	f.StringVar(&s.dataset, "dataset", "", "dataset file (CSV, TSV or JSONL)")
	f.StringVar(&s.format, "format", "", "dataset format: csv, tsv or jsonl (default: by extension)")
	f.StringVar(&s.textField, "text-field", "", "column shown for each record: a name or #N")
	f.StringVar(&s.qtype, "type", "", "question type: label, multi_label, rating, ranking, span, text")
	f.StringSliceVar(&s.labels, "labels", nil, "comma-separated label set")
	f.IntVar(&s.ratingMin, "rating-min", 0, "lowest rating")
	f.IntVar(&s.ratingMax, "rating-max", 0, "highest rating")
	f.BoolVar(&s.overlap, "allow-overlap", false, "let span annotations overlap")
	f.StringVar(&s.guidelines, "guidelines", "", "instructions shown with each record")
}

func (s *sessionFlags) apply(f *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("session", &cfg.Session, s.session)
	set("dataset", &cfg.Dataset.Path, s.dataset)
	set("format", &cfg.Dataset.Format, s.format)
	set("text-field", &cfg.Dataset.TextField, s.textField)
	set("type", &cfg.Question.Type, s.qtype)
	set("guidelines", &cfg.Guidelines, s.guidelines)
	if f.Changed("labels") {
		cfg.Question.Labels = s.labels
	}
	if f.Changed("rating-min") {
		cfg.Question.RatingMin = s.ratingMin
	}
	if f.Changed("rating-max") {
		cfg.Question.RatingMax = s.ratingMax
	}
	if f.Changed("allow-overlap") {
		cfg.Question.AllowOverlap = s.overlap
	}
}

// destinationFlags override the destination section of the config.
type destinationFlags struct {
	url        string
	apiKeyFile string
	dataset    string
	workspace  string
	mode       string
}

func (d *destinationFlags) register(f *pflag.FlagSet) {
	f.StringVar(&d.url, "url", "", "Argilla server URL")
	f.StringVar(&d.apiKeyFile, "api-key-file", "", "file holding the Argilla API key (or set "+config.APIKeyEnv+")")
	f.StringVar(&d.dataset, "argilla-dataset", "", "target Argilla dataset")
	f.StringVar(&d.workspace, "workspace", "", "target Argilla workspace")
	f.StringVar(&d.mode, "mode", "", "submit annotations as a response or a suggestion")
}

func (d *destinationFlags) apply(f *pflag.FlagSet, cfg *config.Config) {
	for _, o := range []struct {
		name string
		dst  *string
		v    string
	}{
		{"url", &cfg.Destination.URL, d.url},
		{"api-key-file", &cfg.Destination.APIKeyFile, d.apiKeyFile},
		{"argilla-dataset", &cfg.Destination.Dataset, d.dataset},
		{"workspace", &cfg.Destination.Workspace, d.workspace},
		{"mode", &cfg.Destination.Mode, d.mode},
	} {
		if f.Changed(o.name) {
			*o.dst = strings.TrimSpace(o.v)
		}
	}
}

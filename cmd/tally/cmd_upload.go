package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tally/internal/export"
	"tally/internal/review"
	"tally/internal/schema"
	"tally/internal/store"
	"tally/internal/upload"
)

func newUploadCmd(a *app) *cobra.Command {
	var (
		session string
		from    string
		qtype   string
		labels  []string
		df      destinationFlags
	)
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload annotations to an Argilla dataset",
		Long: `Uploads the commits of a stored session, or of a JSONL export, to Argilla.
The dataset is created (and published) when it does not exist. Records carry
deterministic external ids, so uploading the same annotations twice updates
them in place.

With --from the question comes from --type and --labels, or from the
configuration file.`,
		Example: `  tally upload --session reviews-2026 --url https://argilla.example.com --argilla-dataset movies
  tally upload --from labeled.jsonl --type label --labels pos,neg --workspace team`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			df.apply(cmd.Flags(), a.cfg)
			if session != "" && from != "" {
				return fmt.Errorf("pass either --session or --from, not both")
			}

			var (
				d        schema.Descriptor
				examples []review.AnnotatedExample
				err      error
			)
			if from != "" {
				if cmd.Flags().Changed("type") {
					a.cfg.Question.Type = qtype
				}
				if cmd.Flags().Changed("labels") {
					a.cfg.Question.Labels = labels
				}
				d, examples, err = a.fromExport(from)
			} else {
				if session == "" {
					session = a.cfg.Session
				}
				d, examples, err = a.fromSession(cmd, session)
			}
			if err != nil {
				return err
			}

			dest, err := a.cfg.UploadDestination()
			if err != nil {
				return err
			}
			up, err := a.uploader()
			if err != nil {
				return err
			}
			if err := up.Upload(cmd.Context(), dest, d, examples); err != nil {
				if ue, ok := upload.AsUploadError(err); ok && ue.Submitted > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d records were accepted before the failure\n", ue.Submitted, len(examples))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d annotations to %s in workspace %s\n", len(examples), dest.Dataset, dest.Workspace)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&session, "session", "", "stored session to upload (default from config)")
	f.StringVar(&from, "from", "", "JSONL export to upload instead of a stored session")
	f.StringVar(&qtype, "type", "", "question type of the --from file")
	f.StringSliceVar(&labels, "labels", nil, "label set of the --from file")
	df.register(f)
	return cmd
}

func (a *app) fromSession(cmd *cobra.Command, name string) (schema.Descriptor, []review.AnnotatedExample, error) {
	st, err := a.openStore()
	if err != nil {
		return schema.Descriptor{}, nil, err
	}
	defer st.Close()
	meta, err := st.GetSession(cmd.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return schema.Descriptor{}, nil, fmt.Errorf("no stored session %q (see tally sessions)", name)
		}
		return schema.Descriptor{}, nil, err
	}
	d, err := meta.Descriptor()
	if err != nil {
		return schema.Descriptor{}, nil, err
	}
	examples, err := st.Examples(cmd.Context(), name)
	if err != nil {
		return schema.Descriptor{}, nil, err
	}
	return d, examples, nil
}

func (a *app) fromExport(path string) (schema.Descriptor, []review.AnnotatedExample, error) {
	sc, err := a.cfg.SchemaConfig()
	if err != nil {
		return schema.Descriptor{}, nil, err
	}
	d, err := schema.Build(sc)
	if err != nil {
		return schema.Descriptor{}, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return schema.Descriptor{}, nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	examples, err := export.ReadJSONL(f)
	if err != nil {
		return schema.Descriptor{}, nil, err
	}
	for _, ex := range examples {
		if err := d.Question.Validate(ex.Annotation); err != nil {
			return schema.Descriptor{}, nil, fmt.Errorf("%s: record %d: %w", path, ex.RecordIndex, err)
		}
	}
	return d, examples, nil
}

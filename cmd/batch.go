package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chemtrace/sds-cli/internal/model"
)

var (
	batchFewShot    bool
	batchNoValidate bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract fields from every .txt document in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		docs, err := loadDocuments(args[0])
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return eris.Errorf("no .txt documents in %s", args[0])
		}

		env, err := initEnv(ctx, batchFewShot, !batchNoValidate)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Orchestrator.ProcessBatch(ctx, docs)
		if err != nil {
			return err
		}

		if err := env.Store.SaveRecords(ctx, res.Records); err != nil {
			return err
		}
		for i := range res.Dead {
			if err := env.Store.AddDLQ(ctx, &res.Dead[i]); err != nil {
				zap.L().Warn("failed to persist dead-letter entry",
					zap.String("document_id", res.Dead[i].DocumentID), zap.Error(err))
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOCUMENT\tPROFILE\tOUTCOME")
		for _, rec := range res.Records {
			fmt.Fprintf(w, "%s\t%s\t%s\n", rec.DocumentID, rec.ProfileUsed, rec.Outcome)
		}
		for _, d := range res.Dead {
			fmt.Fprintf(w, "%s\t-\tfailed: %s\n", d.DocumentID, d.Error)
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "flush table")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%d processed, %d failed\n", len(res.Records), len(res.Dead))
		return nil
	},
}

// loadDocuments reads every .txt file in dir as one document, using the
// file name (sans extension) as the document id.
func loadDocuments(dir string) ([]model.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read dir %s", dir)
	}

	var docs []model.Document
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", path)
		}
		docs = append(docs, model.Document{
			ID:   documentID(path),
			Text: string(text),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func init() {
	batchCmd.Flags().BoolVar(&batchFewShot, "few-shot", false, "use few-shot prompts")
	batchCmd.Flags().BoolVar(&batchNoValidate, "no-validate", false, "skip external validation")
	rootCmd.AddCommand(batchCmd)
}

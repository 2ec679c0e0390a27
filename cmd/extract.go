package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/chemtrace/sds-cli/internal/model"
)

var (
	extractVendor     string
	extractFewShot    bool
	extractNoValidate bool
	extractSave       bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract fields from a single SDS text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		env, err := initEnv(ctx, extractFewShot, !extractNoValidate)
		if err != nil {
			return err
		}
		defer env.Close()

		doc := model.Document{
			ID:         documentID(args[0]),
			VendorHint: extractVendor,
			Text:       string(text),
		}
		rec, err := env.Orchestrator.Process(ctx, doc)
		if err != nil {
			return err
		}

		if extractSave {
			if err := env.Store.SaveRecord(ctx, rec); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rec), "encode record")
	},
}

// documentID derives a stable id from the file name.
func documentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func init() {
	extractCmd.Flags().StringVar(&extractVendor, "vendor", "", "vendor hint for profile routing")
	extractCmd.Flags().BoolVar(&extractFewShot, "few-shot", false, "use few-shot prompts")
	extractCmd.Flags().BoolVar(&extractNoValidate, "no-validate", false, "skip external validation")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "persist the record to the store")
	rootCmd.AddCommand(extractCmd)
}

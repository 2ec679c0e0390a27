package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/chemtrace/sds-cli/internal/catalog"
	"github.com/chemtrace/sds-cli/internal/model"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect and validate extraction profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPRIORITY\tSIGNATURES\tFIELDS")
		for _, p := range cat.Snapshot().Profiles() {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", p.Name, p.Priority, len(p.Signatures), len(p.Fields))
		}
		return eris.Wrap(w.Flush(), "flush table")
	},
}

var profilesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the profile directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadCatalog(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "profiles valid")
		return nil
	},
}

// loadCatalog builds a catalog from the configured profile directory,
// surfacing any pattern or weight validation error.
func loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.New(model.DefaultFieldRegistry())
	if err != nil {
		return nil, err
	}
	if dir := cfg.Catalog.ProfileDir; dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := cat.LoadDir(dir); err != nil {
				return nil, err
			}
		}
	}
	return cat, nil
}

func init() {
	profilesCmd.AddCommand(profilesListCmd, profilesValidateCmd)
	rootCmd.AddCommand(profilesCmd)
}

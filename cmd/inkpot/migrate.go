package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/inkpot/internal/admin"
	"github.com/mschirtzinger/inkpot/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "schema",
	Short:   "Create or upgrade the database schema",
	Long: `Compare the fingerprint of the expected schema with the one recorded in
the datastore and apply the schema when they differ. A new version row is
recorded in the same transaction, so a failed migration leaves the
previous schema untouched.

After a schema change categories, authors and articles are imported from
the content tree unless --skip-import is given.

--force applies the schema and records a new version even when the
fingerprint matches. It asks for confirmation on a terminal; pass --yes
to skip the prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		skipImport, _ := cmd.Flags().GetBool("skip-import")
		yes, _ := cmd.Flags().GetBool("yes")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if force && !yes {
			ok, err := confirmForce()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		a, err := newApp(hooks{})
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.admin.Migrate(cmd.Context(), admin.MigrateRequest{Force: force, SkipImport: skipImport})
		if jsonOutput {
			return printJSON(res)
		}

		if !res.Success {
			fmt.Printf("%s %s\n", ui.RenderFail("✗"), res.Message)
			return fmt.Errorf("migration failed")
		}
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), res.Message)
		if res.ConfigHash != "" {
			fmt.Printf("   Schema: %s\n", ui.RenderMuted(res.ConfigHash))
		}
		return nil
	},
}

// confirmForce asks before a forced migration. Without a terminal there
// is nobody to ask, so --yes is required.
func confirmForce() (bool, error) {
	if !ui.IsInputTerminal() {
		return false, errors.New("--force needs confirmation; pass --yes when not running in a terminal")
	}

	var confirmed bool
	err := huh.NewConfirm().
		Title("Force a schema migration?").
		Description("The schema is re-applied and a new version is recorded even if nothing changed.").
		Affirmative("Migrate").
		Negative("Cancel").
		Value(&confirmed).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}

func init() {
	migrateCmd.Flags().Bool("force", false, "Apply the schema even if the fingerprint matches")
	migrateCmd.Flags().Bool("skip-import", false, "Do not import content after a schema change")
	migrateCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	migrateCmd.Flags().Bool("json", false, "Output the result as JSON")
	rootCmd.AddCommand(migrateCmd)
}

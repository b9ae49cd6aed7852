package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/inkpot/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "schema",
	Short:   "Show schema version and row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := newApp(hooks{})
		if err != nil {
			return err
		}
		defer a.Close()

		resp := a.admin.Status(cmd.Context())
		if jsonOutput {
			return printJSON(resp)
		}

		if !resp.Success {
			fmt.Printf("%s %s\n", ui.RenderFail("✗"), resp.Message)
			return fmt.Errorf("datastore unavailable")
		}

		fmt.Printf("\n%s Inkpot Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Database: %s\n", a.db.Path())
		fmt.Printf("Content:  %s\n\n", cfg.Content.Root)

		if resp.Empty {
			fmt.Printf("%s Datastore has not been migrated. Run 'inkpot migrate'.\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Expected schema: %s\n", ui.RenderMuted(resp.ExpectedHash))
			return nil
		}

		v := resp.Version
		fmt.Printf("Schema version: %d (applied %s)\n", v.Version, v.AppliedAt.Local().Format("2006-01-02 15:04:05"))
		if resp.UpToDate {
			fmt.Printf("%s Schema is up to date\n", ui.RenderPass("✓"))
		} else {
			fmt.Printf("%s Schema is out of date. Run 'inkpot migrate'.\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Stored:   %s\n", ui.RenderMuted(v.ConfigHash))
			fmt.Printf("   Expected: %s\n", ui.RenderMuted(resp.ExpectedHash))
		}

		if c := resp.Counts; c != nil {
			fmt.Printf("\nArticles:   %d\n", c.Articles)
			fmt.Printf("Categories: %d\n", c.Categories)
			fmt.Printf("Authors:    %d\n", c.Authors)
			fmt.Printf("Tags:       %d\n", c.Tags)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/inkpot/internal/admin"
	"github.com/mschirtzinger/inkpot/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync [slug]",
	GroupID: "sync",
	Short:   "Reconcile articles with the database",
	Long: `Reconcile content entries with the database.

Without arguments every entry under <content>/articles is read and
created, updated or left alone depending on what changed. Categories and
authors are imported first unless --taxonomy=false.

With a slug only that entry is re-read and written.

Entries that fail to parse, and references to unknown categories or
authors, are reported but never stop the run. The command is idempotent:
a second run over unchanged content writes nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taxonomy, _ := cmd.Flags().GetBool("taxonomy")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(hooks{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ensureSchema(ctx, false); err != nil {
			return err
		}

		slug := ""
		if len(args) == 1 {
			slug = args[0]
		}

		if slug == "" && taxonomy {
			if err := importTaxonomy(ctx, a, jsonOutput); err != nil {
				return err
			}
		}

		if !jsonOutput {
			target := cfg.Content.Root
			if slug != "" {
				target = slug
			}
			fmt.Printf("%s Syncing %s...\n", ui.RenderAccent("🔄"), target)
		}
		start := time.Now()

		resp := a.admin.Sync(ctx, slug)

		if jsonOutput {
			return printJSON(resp)
		}
		printSyncResponse(resp, time.Since(start))
		if !resp.Success {
			return fmt.Errorf("sync failed")
		}
		return nil
	},
}

func importTaxonomy(ctx context.Context, a *app, quiet bool) error {
	res, err := a.engine.ImportTaxonomy(ctx)
	if err != nil {
		return fmt.Errorf("importing taxonomy: %w", err)
	}
	if quiet {
		return nil
	}
	if res.Created+res.Updated > 0 {
		fmt.Printf("%s Taxonomy: %d created, %d updated\n", ui.RenderPass("✓"), res.Created, res.Updated)
	}
	for _, msg := range res.Errors {
		fmt.Printf("  %s %s\n", ui.RenderWarn("⚠"), msg)
	}
	return nil
}

func printSyncResponse(resp admin.SyncResponse, elapsed time.Duration) {
	switch {
	case !resp.Success:
		fmt.Printf("%s %s\n", ui.RenderFail("✗"), resp.Message)
	case resp.Slug != "":
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), resp.Message)
	default:
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed.Round(time.Millisecond))
		fmt.Printf("   Created:   %d\n", resp.Created)
		fmt.Printf("   Updated:   %d\n", resp.Updated)
		fmt.Printf("   Unchanged: %d\n", resp.Unchanged)
		if resp.Cancelled {
			fmt.Printf("%s Cancelled before all entries were processed\n", ui.RenderWarn("⚠"))
		}
	}

	if len(resp.Errors) > 0 {
		fmt.Printf("\n%s %d problem(s):\n", ui.RenderWarn("⚠"), len(resp.Errors))
		for _, msg := range resp.Errors {
			fmt.Printf("   %s\n", msg)
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	syncCmd.Flags().Bool("taxonomy", true, "Import categories and authors before a full sync")
	syncCmd.Flags().Bool("json", false, "Output the result as JSON")
	rootCmd.AddCommand(syncCmd)
}

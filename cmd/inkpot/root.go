package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/inkpot/internal/config"
	"github.com/mschirtzinger/inkpot/internal/logging"
	"github.com/mschirtzinger/inkpot/internal/ui"
)

var (
	cfgFile     string
	contentRoot string
	dbPath      string
	noColor     bool

	cfg  *config.Config
	logs *logging.Factory
)

var rootCmd = &cobra.Command{
	Use:   "inkpot",
	Short: "Content sync and schema migration for markdown sites",
	Long: `inkpot mirrors a directory of markdown articles into a SQLite database.

Each article lives at <content>/articles/<slug>/index.md (or index.mdx)
with YAML or TOML front matter. Categories and authors are read from
<content>/categories and <content>/authors.

Example usage:
  inkpot migrate              # Create or upgrade the schema and import content
  inkpot sync                 # Reconcile every article
  inkpot sync hello-world     # Reconcile one article
  inkpot status               # Show schema version and row counts
  inkpot watch --dashboard    # Keep the database in step while editing`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logs != nil {
			return logs.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "schema", Title: "Schema Commands:"},
	)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./inkpot.yaml)")
	rootCmd.PersistentFlags().StringVar(&contentRoot, "content", "", "content root directory (overrides content.root)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides database.path)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// initConfig loads configuration and applies flag overrides.
func initConfig() error {
	if noColor {
		ui.DisableColor()
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if contentRoot != "" {
		cfg.Content.Root = contentRoot
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logs, err = logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	return nil
}

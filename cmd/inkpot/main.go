// Command inkpot keeps a SQLite database in step with a tree of markdown
// articles and manages the database schema.
package main

import (
	"fmt"
	"os"

	"github.com/mschirtzinger/inkpot/internal/ui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}

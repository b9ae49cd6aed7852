package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/inkpot/internal/daemon"
	"github.com/mschirtzinger/inkpot/internal/dashboard"
	"github.com/mschirtzinger/inkpot/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Keep the database in step with the content tree",
	Long: `Watch <content>/articles and sync each entry shortly after it changes.

Bursts of events for one entry are debounced into a single sync. Removing
an entry's directory removes its article. A full sync runs first unless
watch.initial_sync is false.

With --dashboard a WebSocket event feed and the admin JSON API are served:
  ws://localhost:8080/ws
  POST /api/sync, GET /api/status, POST /api/migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("dashboard") {
			cfg.Dashboard.Enabled, _ = cmd.Flags().GetBool("dashboard")
		}
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("port")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var (
			server *dashboard.Server
			h      hooks
		)
		if cfg.Dashboard.Enabled {
			server = dashboard.NewServer(&dashboard.Config{
				Host:   cfg.Dashboard.Host,
				Port:   cfg.Dashboard.Port,
				Logger: logs.Logger("dashboard"),
			})
			handler := dashboard.NewHandler(server, logs.Logger("dashboard"))
			h = hooks{sync: handler, migrate: handler}
		}

		a, err := newApp(h)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ensureSchema(ctx, true); err != nil {
			return err
		}

		d, err := daemon.New(a.engine, a.reader.ArticlesPath(), &daemon.Config{
			DebounceInterval: cfg.Watch.Debounce,
			InitialSync:      cfg.Watch.InitialSync,
			Logger:           logs.Logger("daemon"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("🚀"), a.reader.ArticlesPath())
		fmt.Printf("   Database: %s\n", a.db.Path())

		g, gctx := errgroup.WithContext(ctx)

		if server != nil {
			server.SetAdmin(a.admin)
			if err := server.Start(); err != nil {
				_ = d.Stop()
				return err
			}
			fmt.Printf("   Dashboard: http://%s\n", server.GetAddr())
			g.Go(func() error {
				<-gctx.Done()
				return server.Stop()
			})
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		g.Go(func() error {
			err := d.Start(gctx)
			if stopErr := d.Stop(); err == nil {
				err = stopErr
			}
			return err
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		dispatched, failed := d.Stats()
		fmt.Printf("\n%s Stopped after %d sync(s), %d failed\n", ui.RenderPass("✓"), dispatched, failed)
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("dashboard", false, "Serve the WebSocket dashboard and admin API")
	watchCmd.Flags().IntP("port", "p", 8080, "Dashboard port")
	rootCmd.AddCommand(watchCmd)
}

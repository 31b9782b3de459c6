package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chorushq/chorus/internal/actions"
	"github.com/chorushq/chorus/internal/app"
	"github.com/chorushq/chorus/internal/server"
	"github.com/chorushq/chorus/internal/store"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(log zerolog.Logger) *cobra.Command {
	var addr string
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP coordination server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Effective()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				log.Debug().Str("flag", f.Name).Str("value", f.Value.String()).Msg("flag override")
			})

			db, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reaper := actions.NewReaper(db, log)
			reaperDone := make(chan struct{})
			go func() {
				defer close(reaperDone)
				reaper.Run(ctx)
			}()

			srv := server.New(cfg, db, log)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				stop()
				<-reaperDone
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown failed")
			}
			<-reaperDone

			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: CHORUS_ADDR or :8080)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "SQLite database location (default: DATABASE_URL or chorus.db)")
	return cmd
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/protoscribe/protoscribe/pkg/agent"
	"github.com/protoscribe/protoscribe/pkg/convstore"
	"github.com/protoscribe/protoscribe/pkg/kv"
	"github.com/protoscribe/protoscribe/pkg/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat and document generation service",
	Long: `Run the HTTP service.

Endpoints:
  POST /api/chat           chat or document generation, streamed as SSE
  GET  /ws/chat            the same over a websocket
  GET  /api/download-docx  download the generated protocol (.docx)
  GET  /api/instruction    show the assistant instruction
  PUT  /api/instruction    replace the assistant instruction

Example:
  protoscribe serve --listen :8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveListen != "" {
			cfg.Listen = serveListen
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gen, err := buildGenerator(ctx, cfg)
		if err != nil {
			return err
		}
		db, err := kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(cfg.DataDir, "db")})
		if err != nil {
			return err
		}
		defer db.Close()
		store := convstore.New(db)
		arts, err := buildArtifacts(cfg)
		if err != nil {
			return err
		}

		srv := &server.Server{
			Agent: &agent.Agent{
				Generator:       gen,
				ChatModel:       cfg.Models.Chat.Name,
				ClassifierModel: cfg.Models.Classifier.Name,
				DocumentModel:   cfg.Models.Document.Name,
				Store:           store,
				Artifacts:       arts,
			},
			Store:     store,
			Artifacts: arts,
		}

		httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}
		errCh := make(chan error, 1)
		go func() {
			slog.Info("serve: listening", "addr", cfg.Listen)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("serve: shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

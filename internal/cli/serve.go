package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/certverify/internal/api"
	"github.com/ppiankov/certverify/internal/pipeline"
	"github.com/ppiankov/certverify/internal/storage"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification HTTP API",
	Long: `Serve exposes certverify over HTTP:
  POST /api/verify         multipart file1, file2, year, organization, type
                           (?stream=1 streams state events, then the report)
  POST /api/extract        {"rawText": "..."} -> {"fields": {...}}
  GET  /api/certificates   stored certificate records
  POST /api/certificates   zip archive of PDFs (raw body or {"zipBase64": "..."})
  GET  /health

Set server.api_key (CERTVERIFY_SERVER_API_KEY) to require a bearer token.

Example:
  certverify serve --addr :8090
  CERTVERIFY_STORAGE_BACKEND=gcs CERTVERIFY_STORAGE_BUCKET=certs certverify serve`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if flag := cmd.Flags().Lookup("addr"); flag.Changed {
			if err := viper.BindPFlag("server.addr", flag); err != nil {
				return err
			}
		}
		return bindPipelineFlags(cmd.Flags())
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	addPipelineFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p, err := pipeline.NewFromConfig(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	backend, err := storage.Open(ctx, cfg.Storage, cfg.Server.MaxUploadBytes, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = backend.Close() }()

	srv := api.NewServer(api.Deps{
		Verifier: p,
		Provider: p.Provider(),
		Ingester: backend.Ingester,
		Registry: backend.Registry,
	}, log, cfg.Server)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      10 * time.Minute, // Streamed verifications stay open for the whole run
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("starting certverify",
		"addr", cfg.Server.Addr,
		"provider", p.Provider().Name(),
		"storage", cfg.Storage.Backend,
		"auth", cfg.Server.APIKey != "",
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigCh:
		log.Info("shutting down...", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", "error", err)
	}
	cancel()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("certverify stopped")
	return nil
}

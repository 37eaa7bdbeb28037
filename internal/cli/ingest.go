package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/certverify/internal/storage"
)

var (
	ingestOrg     string
	ingestTimeout time.Duration
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <archive.zip>",
	Short: "Store the PDF certificates of a zip archive",
	Long: `Ingest unpacks a zip archive, validates every PDF in it, uploads each
one to the configured object store and records it in the certificate registry.

Objects that already exist are reported and left untouched.

Example:
  certverify ingest batch.zip --org "Example University"
  CERTVERIFY_STORAGE_BACKEND=gcs CERTVERIFY_STORAGE_BUCKET=certs certverify ingest batch.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestOrg, "org", "", "issuing organization recorded with every certificate")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "ingest timeout")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), ingestTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "memory" {
		fmt.Fprintf(os.Stderr, "⚠️  memory storage backend: nothing is kept after this command exits\n")
	}

	archive, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	backend, err := storage.Open(ctx, cfg.Storage, cfg.Server.MaxUploadBytes, newLogger(verbose))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = backend.Close() }()

	results, err := backend.Ingester.IngestZip(ctx, archive, ingestOrg)
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", r.FileName, r.Error)
		case r.Existing:
			fmt.Fprintf(os.Stderr, "• %s: already stored at %s\n", r.FileName, r.URL)
		default:
			fmt.Fprintf(os.Stderr, "✓ %s: %d pages -> %s\n", r.FileName, r.Pages, r.URL)
		}
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n%d PDF(s) processed\n", len(results))
	return nil
}

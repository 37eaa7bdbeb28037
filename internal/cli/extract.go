package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/certverify/internal/llm"
	"github.com/ppiankov/certverify/internal/util"
	"github.com/ppiankov/certverify/internal/worker"
)

var extractTimeout time.Duration

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [text-file]",
	Short: "Extract certificate fields from OCR text",
	Long: `Extract sends raw certificate text to the configured extraction provider
and prints the structured field record as JSON. Every declared field is
present; fields the model could not find are null.

With no file, or with "-", the text is read from stdin.

Example:
  certverify extract ocr.txt --provider openai
  pdftotext cert.pdf - | certverify extract --provider gemini`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindPipelineFlags(cmd.Flags())
	},
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", time.Minute, "extraction timeout")
	extractCmd.Flags().String("provider", "", "extraction provider (openai, anthropic, ollama, gemini, relay)")
	extractCmd.Flags().String("model", "", "extraction model name")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
	defer cancel()

	rawText, err := readText(args)
	if err != nil {
		return err
	}
	if len(rawText) == 0 {
		return fmt.Errorf("no text to extract from")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	llmConfig := llm.ConfigFromModel(cfg.Extraction)
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	llmConfig.HTTPClient = util.NewHTTPClient(cfg.HTTP, limiter)

	provider, err := llm.NewProvider(ctx, llmConfig)
	if err != nil {
		return fmt.Errorf("extraction provider: %w", err)
	}
	if closer, ok := provider.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Extracting fields with %s...\n", provider.Name())
	}

	fields, err := llm.NewExtractor(provider).Extract(ctx, string(rawText))
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"fields": fields})
}

func readText(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

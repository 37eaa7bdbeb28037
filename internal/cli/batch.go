package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/pipeline"
	"github.com/ppiankov/certverify/internal/report"
	"github.com/ppiankov/certverify/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Verify many certificate pairs from a manifest in parallel",
	Long: `Batch verifies every certificate pair listed in a manifest:
- One pair per line: file1,file2,year,organization[,type]
- Lines starting with # are comments
- Relative paths are resolved against the manifest's directory
- Pairs run in parallel, each in its own isolated verification run
- A JSON and a Markdown report is written for every pair

Example:
  certverify batch pairs.csv
  certverify batch pairs.csv --concurrency 8 --output-dir ./reports
  certverify batch pairs.csv --timeout 30m`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindPipelineFlags(cmd.Flags())
	},
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./certverify-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	addPipelineFlags(batchCmd.Flags())
}

// pairVerifier adapts the pipeline to worker.Verifier
type pairVerifier struct {
	pipeline *pipeline.Pipeline
	loader   *pipeline.Loader
}

// VerifyPair loads both certificates and runs one verification. A failed run
// still returns its report.
func (v *pairVerifier) VerifyPair(ctx context.Context, pair worker.Pair) (*model.Report, error) {
	req := pipeline.Request{Year: pair.Year, Organization: pair.Organization, Kind: pair.Type}
	for i, source := range []string{pair.File1, pair.File2} {
		doc, err := v.loader.Load(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("load certificate %d: %w", i+1, err)
		}
		req.Documents[i] = doc
	}

	res, err := v.pipeline.Verify(ctx, req)
	return res.Report(req), err
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}
	cfg.Output.IncludeFooter = cfg.Output.IncludeFooter && !noFooter

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  certverify Batch Verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Manifest:     %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  Provider:     %s\n", cfg.Extraction.Provider)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.NewFromConfig(ctx, cfg, newLogger(verbose))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	verifier := &pairVerifier{pipeline: p, loader: newLoader(cfg)}
	processor := worker.NewBatchProcessor(verifier, cfg.Concurrency.Workers)

	fmt.Fprintf(os.Stderr, "⚙️  Verifying pairs with %d workers...\n\n", cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process manifest: %w", err)
	}

	renderer := report.NewRenderer(cfg.Output.IncludeFooter)
	completed, failed := 0, 0

	for _, result := range results {
		if result.Report == nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ line %d %s: %v\n", result.Pair.Line, result.Pair.Label(), result.Error)
			continue
		}

		base := filepath.Join(outputDir, reportSlug(result.Pair))
		if err := renderer.RenderJSON(result.Report, base+".json"); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Pair.Label(), err)
		}
		if err := renderer.RenderMarkdown(result.Report, base+".md"); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Pair.Label(), err)
		}

		if result.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %s (%v)\n", result.Pair.Label(), result.Report.State, result.Error)
			continue
		}

		completed++
		fmt.Fprintf(os.Stderr, "✓ %s: %s, tampering suspected: %s\n",
			result.Pair.Label(), result.Report.TextMatchLine(), result.Report.TamperingLine())
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d pairs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Completed:  %d\n", completed)
	fmt.Fprintf(os.Stderr, "  Failed:     %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", failed, len(results))
	}
	return nil
}

// reportSlug names a pair's report files: manifest position plus both file names
func reportSlug(pair worker.Pair) string {
	stem := func(p string) string {
		return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}
	return fmt.Sprintf("%03d-%s", pair.Index+1, sanitizeFilename(stem(pair.File1)+"-vs-"+stem(pair.File2)))
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(s)

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}

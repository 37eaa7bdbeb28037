package worker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
)

// Pair is one line of a batch manifest: two certificates and their context
type Pair struct {
	Index        int
	Line         int
	File1        string
	File2        string
	Year         string
	Organization string
	Type         string
}

// Label returns a short human-readable name for the pair
func (p Pair) Label() string {
	return fmt.Sprintf("%s vs %s", filepath.Base(p.File1), filepath.Base(p.File2))
}

// Verifier verifies a single pair
type Verifier interface {
	VerifyPair(ctx context.Context, pair Pair) (*model.Report, error)
}

// PairJob verifies one pair
type PairJob struct {
	Pair     Pair
	Verifier Verifier
}

// Execute executes the verification job
func (j *PairJob) Execute(ctx context.Context) Result {
	report, err := j.Verifier.VerifyPair(ctx, j.Pair)
	return &PairResult{
		Pair:   j.Pair,
		Report: report,
		Error:  err,
	}
}

// PairResult is the outcome of a PairJob. Report may be set even when Error is,
// since a failed run still produces a report.
type PairResult struct {
	Pair   Pair
	Report *model.Report
	Error  error
}

// GetError returns the error from the pair result
func (r *PairResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies multiple pairs concurrently
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier Verifier, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// ProcessPairs verifies pairs concurrently and returns results in manifest order
func (b *BatchProcessor) ProcessPairs(ctx context.Context, pairs []Pair) []*PairResult {
	if len(pairs) == 0 {
		return []*PairResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	collected := make(chan []*PairResult, 1)
	go func() {
		var out []*PairResult
		for r := range pool.Results() {
			out = append(out, r.(*PairResult))
		}
		collected <- out
	}()

	submitted := make(map[int]bool, len(pairs))
	for _, pair := range pairs {
		if !pool.Submit(&PairJob{Pair: pair, Verifier: b.verifier}) {
			break
		}
		submitted[pair.Index] = true
	}
	pool.CloseAndWait()

	results := <-collected

	// Pairs that never ran because ctx ended are reported as cancelled
	done := make(map[int]bool, len(results))
	for _, r := range results {
		done[r.Pair.Index] = true
	}
	for _, pair := range pairs {
		if !done[pair.Index] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results = append(results, &PairResult{Pair: pair, Error: err})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Pair.Index < results[j].Pair.Index })
	return results
}

// ProcessFile reads a manifest and verifies every pair in it
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*PairResult, error) {
	pairs, err := ReadManifest(filePath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return b.ProcessPairs(ctx, pairs), nil
}

// ReadManifest reads a batch manifest. Each non-empty, non-comment line is
// "file1,file2,year,organization[,type]". Relative paths are resolved
// against the manifest's directory.
func ReadManifest(filePath string) ([]Pair, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return parseManifest(file, filepath.Dir(filePath))
}

func parseManifest(r io.Reader, baseDir string) ([]Pair, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var pairs []Pair
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse manifest: %w", err)
		}

		line, _ := reader.FieldPos(0)
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) < 4 || len(record) > 5 {
			return nil, fmt.Errorf("line %d: expected 4 or 5 columns, got %d", line, len(record))
		}

		pair := Pair{
			Index:        len(pairs),
			Line:         line,
			File1:        resolvePath(baseDir, record[0]),
			File2:        resolvePath(baseDir, record[1]),
			Year:         record[2],
			Organization: record[3],
		}
		if len(record) == 5 {
			pair.Type = record[4]
		}
		pairs = append(pairs, pair)
	}

	return pairs, nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

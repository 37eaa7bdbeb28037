package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/pipeline"
	"github.com/ppiankov/certverify/internal/worker"
)

type echoRecognizer struct{}

func (echoRecognizer) Recognize(ctx context.Context, doc model.Document) (*model.OcrResult, error) {
	return &model.OcrResult{Pages: []string{string(doc.Content)}}, nil
}

type echoExtractor struct{}

func (echoExtractor) Extract(ctx context.Context, rawText string) (model.FieldRecord, error) {
	return model.FieldRecord{model.FieldName: model.Str(strings.TrimSpace(rawText))}, nil
}

type cleanComparer struct{}

func (cleanComparer) Compare(ctx context.Context, first, second model.Document) (*model.VisualResult, error) {
	return &model.VisualResult{}, nil
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"diploma", "diploma"},
		{"a b/c", "a-b_c"},
		{"what?*", "what__"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReportSlug(t *testing.T) {
	pair := worker.Pair{Index: 2, File1: "/certs/jane doe.pdf", File2: "scans/jane.jpg"}
	if got := reportSlug(pair); got != "003-jane-doe-vs-jane" {
		t.Errorf("unexpected slug %q", got)
	}
}

func TestPairVerifier(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.png")
	second := filepath.Join(dir, "b.png")
	if err := os.WriteFile(first, []byte("Jane Doe"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("Jane Doe\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := pipeline.New(echoRecognizer{}, echoExtractor{}, cleanComparer{}, nil, pipeline.Options{})
	verifier := &pairVerifier{pipeline: p, loader: pipeline.NewLoader(nil, 0)}

	year := time.Now().Format("2006")
	report, err := verifier.VerifyPair(context.Background(), worker.Pair{
		File1: first, File2: second, Year: year, Organization: "Example University",
	})
	if err != nil {
		t.Fatalf("VerifyPair: %v", err)
	}
	if report.State != "completed" || !report.Comparison.OverallMatch {
		t.Errorf("unexpected report: state=%s comparison=%+v", report.State, report.Comparison)
	}

	_, err = verifier.VerifyPair(context.Background(), worker.Pair{
		File1: filepath.Join(dir, "missing.png"), File2: second, Year: year, Organization: "X",
	})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	viper.SetEnvPrefix("CERTVERIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	t.Setenv("CERTVERIFY_OCR_BASE_URL", "http://ocr.internal:5001")
	t.Setenv("CERTVERIFY_EXTRACTION_PROVIDER", "openai")
	t.Setenv("CERTVERIFY_PIPELINE_STAGE_TIMEOUT", "90s")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.OCR.BaseURL != "http://ocr.internal:5001" {
		t.Errorf("unexpected OCR URL %q", cfg.OCR.BaseURL)
	}
	if cfg.Pipeline.StageTimeout != 90*time.Second {
		t.Errorf("unexpected stage timeout %v", cfg.Pipeline.StageTimeout)
	}
	if cfg.Extraction.APIKey != "sk-test" {
		t.Errorf("expected API key from OPENAI_API_KEY, got %q", cfg.Extraction.APIKey)
	}
	if cfg.Visual.BaseURL != model.DefaultConfig().Visual.BaseURL {
		t.Errorf("expected default visual URL, got %q", cfg.Visual.BaseURL)
	}
	if !cfg.Pipeline.Parallel {
		t.Error("expected parallel default to survive")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := writeDefaultConfig(path, model.DefaultConfig()); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("read written config: %v", err)
	}
	if got := viper.GetString("ocr.base_url"); got != "http://localhost:5001" {
		t.Errorf("unexpected ocr.base_url %q", got)
	}
	if got := viper.GetDuration("cache.disk_ttl"); got != 24*time.Hour {
		t.Errorf("unexpected cache.disk_ttl %v", got)
	}
}

func TestLoadConfig_OptionalKeysFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	viper.SetEnvPrefix("CERTVERIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	t.Setenv("CERTVERIFY_SERVER_API_KEY", "secret")
	t.Setenv("CERTVERIFY_STORAGE_BUCKET", "certs")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.APIKey != "secret" || cfg.Storage.Bucket != "certs" {
		t.Errorf("expected env values, got api_key=%q bucket=%q", cfg.Server.APIKey, cfg.Storage.Bucket)
	}
	if cfg.Extraction.Region != "us-central1" {
		t.Errorf("expected default region, got %q", cfg.Extraction.Region)
	}
}

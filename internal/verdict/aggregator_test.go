package verdict

import (
	"strings"
	"testing"

	"github.com/ppiankov/certverify/internal/model"
)

func TestAggregator_RegionErrorDoesNotHideOtherRegions(t *testing.T) {
	agg := NewAggregator(model.PolicyService, DefaultThresholds())

	result := &model.VisualResult{
		Regions: []model.RegionSimilarity{
			{Region: "sign", EmbeddingSimilarity: 0.97, EmbeddingMatch: true, KeypointSimilarity: 0.42, KeypointMatch: false},
			{Region: "profile", Error: "no face detected"},
		},
		TamperingSuspected: true,
	}

	v := agg.Aggregate(result)

	if len(v.Summary) != 2 {
		t.Fatalf("expected 2 summary lines, got %d: %v", len(v.Summary), v.Summary)
	}

	// Regions are reported in name order
	if v.Summary[0] != "profile: no face detected" {
		t.Errorf("expected profile error verbatim, got %q", v.Summary[0])
	}

	sign := v.Summary[1]
	for _, want := range []string{"sign", "Deep Learning Match: ✅", "0.97", "SIFT Match: ❌", "0.42"} {
		if !strings.Contains(sign, want) {
			t.Errorf("expected sign summary to contain %q, got %q", want, sign)
		}
	}

	if !v.TamperingSuspected {
		t.Error("expected tampering flag to follow the service")
	}
	if !v.ServiceFlag {
		t.Error("expected service flag to be recorded")
	}
}

func TestAggregator_ServicePolicyDoesNotApplyThresholds(t *testing.T) {
	agg := NewAggregator(model.PolicyService, DefaultThresholds())

	// Low scores but service says match and no tampering: surfaced unchanged
	result := &model.VisualResult{
		Regions: []model.RegionSimilarity{
			{Region: "profile", EmbeddingSimilarity: 0.10, EmbeddingMatch: true, KeypointSimilarity: 0.05, KeypointMatch: true},
		},
		TamperingSuspected: false,
	}

	v := agg.Aggregate(result)

	if v.TamperingSuspected {
		t.Error("expected service flag false to be surfaced")
	}
	if !v.Regions[0].EmbeddingMatch || !v.Regions[0].KeypointMatch {
		t.Error("expected service booleans to be surfaced unchanged")
	}
	if len(v.Notes) != 0 {
		t.Errorf("expected no notes under service policy, got %v", v.Notes)
	}
}

func TestAggregator_LocalPolicyOverridesBooleans(t *testing.T) {
	agg := NewAggregator(model.PolicyLocal, Thresholds{Embedding: 0.9, Keypoint: 0.8})

	result := &model.VisualResult{
		Regions: []model.RegionSimilarity{
			{Region: "profile", EmbeddingSimilarity: 0.50, EmbeddingMatch: true, KeypointSimilarity: 0.85, KeypointMatch: true},
			{Region: "sign", EmbeddingSimilarity: 0.99, EmbeddingMatch: true, KeypointSimilarity: 0.90, KeypointMatch: true},
		},
		TamperingSuspected: false,
	}

	v := agg.Aggregate(result)

	if !v.TamperingSuspected {
		t.Error("expected local mismatch to raise tampering flag")
	}
	if v.ServiceFlag {
		t.Error("expected service flag to stay false")
	}
	if v.Regions[0].EmbeddingMatch {
		t.Error("expected profile embedding match to be re-derived as false")
	}
	if len(v.Notes) != 1 || !strings.Contains(v.Notes[0], "profile") {
		t.Errorf("expected one profile disagreement note, got %v", v.Notes)
	}
}

func TestAggregator_LocalPolicyAllMatch(t *testing.T) {
	agg := NewAggregator(model.PolicyLocal, DefaultThresholds())

	result := &model.VisualResult{
		Regions: []model.RegionSimilarity{
			{Region: "profile", EmbeddingSimilarity: 0.99, EmbeddingMatch: true, KeypointSimilarity: 0.95, KeypointMatch: true},
		},
	}

	v := agg.Aggregate(result)

	if v.TamperingSuspected {
		t.Error("expected no tampering when all scores clear thresholds")
	}
}

func TestAggregator_NilResult(t *testing.T) {
	v := NewAggregator("", DefaultThresholds()).Aggregate(nil)
	if v.Policy != model.PolicyService {
		t.Errorf("expected default policy service, got %s", v.Policy)
	}
	if v.TamperingSuspected || len(v.Summary) != 0 {
		t.Error("expected empty verdict for nil result")
	}
}

func TestAggregator_DoesNotMutateInput(t *testing.T) {
	agg := NewAggregator(model.PolicyLocal, DefaultThresholds())
	result := &model.VisualResult{
		Regions: []model.RegionSimilarity{
			{Region: "sign", EmbeddingSimilarity: 0.1, EmbeddingMatch: true, KeypointSimilarity: 0.1, KeypointMatch: true},
		},
	}

	_ = agg.Aggregate(result)

	if !result.Regions[0].EmbeddingMatch {
		t.Error("expected input regions to be left untouched")
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != model.PolicyService {
		t.Errorf("ParsePolicy(\"\") = %v, %v", p, err)
	}
	if p, err := ParsePolicy("local"); err != nil || p != model.PolicyLocal {
		t.Errorf("ParsePolicy(local) = %v, %v", p, err)
	}
	if _, err := ParsePolicy("strict"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

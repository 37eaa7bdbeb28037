package verdict

import (
	"fmt"
	"sort"

	"github.com/ppiankov/certverify/internal/model"
)

// Thresholds are the local match thresholds applied under PolicyLocal
type Thresholds struct {
	Embedding float64 // Minimum deep-learning similarity for a match
	Keypoint  float64 // Minimum SIFT similarity for a match
}

// DefaultThresholds returns the documented local thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		Embedding: 0.95,
		Keypoint:  0.80,
	}
}

// Aggregator turns per-region similarity results into a TamperVerdict
type Aggregator struct {
	policy     model.VerdictPolicy
	thresholds Thresholds
}

// NewAggregator creates a new aggregator. An empty policy selects PolicyService.
func NewAggregator(policy model.VerdictPolicy, thresholds Thresholds) *Aggregator {
	if policy == "" {
		policy = model.PolicyService
	}
	return &Aggregator{
		policy:     policy,
		thresholds: thresholds,
	}
}

// ParsePolicy parses a verdict policy name. The empty string selects PolicyService.
func ParsePolicy(s string) (model.VerdictPolicy, error) {
	switch model.VerdictPolicy(s) {
	case "", model.PolicyService:
		return model.PolicyService, nil
	case model.PolicyLocal:
		return model.PolicyLocal, nil
	default:
		return "", fmt.Errorf("unknown verdict policy %q (supported: service, local)", s)
	}
}

// Aggregate builds the verdict for a visual result.
//
// Under PolicyService the aggregator only collects and formats: region errors
// are recorded verbatim, scores and match booleans are surfaced as supplied,
// and TamperingSuspected is the service's own flag. Under PolicyLocal the match
// booleans are re-derived from raw scores, disagreements with the service are
// noted, and any local mismatch also raises TamperingSuspected.
func (a *Aggregator) Aggregate(result *model.VisualResult) model.TamperVerdict {
	v := model.TamperVerdict{
		Policy: a.policy,
	}
	if result == nil {
		return v
	}

	regions := make([]model.RegionSimilarity, len(result.Regions))
	copy(regions, result.Regions)
	sort.Slice(regions, func(i, j int) bool { return regions[i].Region < regions[j].Region })

	v.ServiceFlag = result.TamperingSuspected
	v.TamperingSuspected = result.TamperingSuspected

	for i, region := range regions {
		if region.Failed() {
			v.Summary = append(v.Summary, fmt.Sprintf("%s: %s", region.Region, region.Error))
			continue
		}

		if a.policy == model.PolicyLocal {
			local := a.applyThresholds(region)
			v.Notes = append(v.Notes, disagreements(region, local)...)
			if !local.EmbeddingMatch || !local.KeypointMatch {
				v.TamperingSuspected = true
			}
			region = local
			regions[i] = local
		}

		v.Summary = append(v.Summary, formatRegion(region))
	}

	v.Regions = regions
	return v
}

// applyThresholds re-derives the match booleans of a region from its scores
func (a *Aggregator) applyThresholds(region model.RegionSimilarity) model.RegionSimilarity {
	region.EmbeddingMatch = region.EmbeddingSimilarity >= a.thresholds.Embedding
	region.KeypointMatch = region.KeypointSimilarity >= a.thresholds.Keypoint
	return region
}

// disagreements lists where local decisions differ from the service's
func disagreements(service, local model.RegionSimilarity) []string {
	var notes []string
	if service.EmbeddingMatch != local.EmbeddingMatch {
		notes = append(notes, fmt.Sprintf("%s: deep learning match reported as %s, local threshold says %s",
			service.Region, yesNo(service.EmbeddingMatch), yesNo(local.EmbeddingMatch)))
	}
	if service.KeypointMatch != local.KeypointMatch {
		notes = append(notes, fmt.Sprintf("%s: SIFT match reported as %s, local threshold says %s",
			service.Region, yesNo(service.KeypointMatch), yesNo(local.KeypointMatch)))
	}
	return notes
}

// formatRegion renders one region as a summary bullet
func formatRegion(region model.RegionSimilarity) string {
	return fmt.Sprintf("%s: Deep Learning Match: %s (Similarity: %.2f), SIFT Match: %s (Similarity: %.2f)",
		region.Region,
		mark(region.EmbeddingMatch), region.EmbeddingSimilarity,
		mark(region.KeypointMatch), region.KeypointSimilarity)
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

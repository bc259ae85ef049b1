package scan

import "math"

// HealthScore maps a metrics snapshot to a 0-100 content-quality score: the
// mean of per-aspect ratios scaled to 100 and rounded to one decimal place.
//
// Aspects: published ratio, non-blank-content ratio, featured-image ratio,
// and (when includeLinks is set) the intact-internal-links ratio.
//
// A scan that visited no posts scores exactly 100.0 in both variants:
// nothing to criticize.
func HealthScore(m Metrics, includeLinks bool) float64 {
	if m.TotalPosts == 0 {
		return 100.0
	}

	total := float64(m.TotalPosts)
	ratios := []float64{
		float64(m.PublishedPosts) / total,
		float64(m.TotalPosts-m.PostsWithBlankContent) / total,
		float64(m.TotalPosts-m.PostsMissingFeaturedImage) / total,
	}
	if includeLinks {
		ratios = append(ratios, float64(m.TotalPosts-m.PostsWithBrokenLinks)/total)
	}

	var sum float64
	for _, r := range ratios {
		sum += r
	}
	score := sum / float64(len(ratios)) * 100

	return math.Round(score*10) / 10
}

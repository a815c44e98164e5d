package fuse

const defaultQualityFloor = 0.5

// FilterConfig holds the minimum scores an insight must reach to be kept.
// Thresholds are compared against the raw aggregated scores, whatever scale
// the sources use.
type FilterConfig struct {
	MinPrimaryScore   float64 `json:"min_primary_score"`
	MinSecondaryScore float64 `json:"min_secondary_score"`
	MinConfidence     float64 `json:"min_confidence"`
}

// DefaultFilterConfig returns the standard 0.5 floors.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinPrimaryScore:   defaultQualityFloor,
		MinSecondaryScore: defaultQualityFloor,
		MinConfidence:     defaultQualityFloor,
	}
}

// Keep reports whether insight clears every floor.
func (c FilterConfig) Keep(insight FusedInsight) bool {
	if insight.PrimaryScore < c.MinPrimaryScore {
		return false
	}
	if insight.SecondaryScore < c.MinSecondaryScore {
		return false
	}
	return insight.Confidence >= c.MinConfidence
}

// Filter drops insights below the default floors.
func Filter(insights []FusedInsight) []FusedInsight {
	return FilterWith(insights, DefaultFilterConfig())
}

// FilterWith drops insights rejected by cfg, preserving order. The input
// slice is not modified.
func FilterWith(insights []FusedInsight, cfg FilterConfig) []FusedInsight {
	kept := make([]FusedInsight, 0, len(insights))
	for _, in := range insights {
		if cfg.Keep(in) {
			kept = append(kept, in)
		}
	}
	return kept
}

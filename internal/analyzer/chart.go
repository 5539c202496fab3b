package analyzer

import (
	"fmt"
	"strings"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// Default thresholds for the decision table. Deployments can tune them
// through New; the table itself is fixed.
const (
	DefaultMaxChartRows     = 100
	DefaultPieMaxCategories = 12
	DefaultHistogramMinRows = 20
)

// Analyzer picks a chart encoding from the shape of a successful result
// set. The choice is a fixed decision table over column kinds and row
// count, not a model call: identical results always produce identical
// specs.
type Analyzer struct {
	maxChartRows     int
	pieMaxCategories int
	histogramMinRows int
}

// New builds an Analyzer. Zero or negative thresholds fall back to the
// defaults.
func New(maxChartRows, pieMaxCategories, histogramMinRows int) *Analyzer {
	if maxChartRows <= 0 {
		maxChartRows = DefaultMaxChartRows
	}
	if pieMaxCategories <= 0 {
		pieMaxCategories = DefaultPieMaxCategories
	}
	if histogramMinRows <= 0 {
		histogramMinRows = DefaultHistogramMinRows
	}
	return &Analyzer{
		maxChartRows:     maxChartRows,
		pieMaxCategories: pieMaxCategories,
		histogramMinRows: histogramMinRows,
	}
}

// Analyze maps a result set to a chart spec. Every shape maps to exactly
// one spec; "none" is the catch-all for shapes without an obvious encoding
// and for oversized results.
func (a *Analyzer) Analyze(result *domain.QueryResult) domain.ChartSpec {
	if result == nil || len(result.Rows) == 0 {
		return domain.NoChart("empty result")
	}
	if len(result.Rows) > a.maxChartRows {
		return domain.NoChart(fmt.Sprintf("result has more than %d rows, table only", a.maxChartRows))
	}

	shapes := DetectShape(result)

	var numeric, categorical, temporal []ColumnShape
	for _, s := range shapes {
		switch s.Kind {
		case ColumnNumeric:
			numeric = append(numeric, s)
		case ColumnCategorical:
			categorical = append(categorical, s)
		case ColumnTemporal:
			temporal = append(temporal, s)
		}
	}

	// One measure grouped by one label: share-of-whole when the values can
	// be read as additive parts, otherwise a plain comparison. A magnitude
	// column like price or rating does not sum to a whole, so it gets bars
	// even when every value is non-negative.
	if len(shapes) == 2 && len(numeric) == 1 && len(categorical) == 1 {
		cat, num := categorical[0], numeric[0]
		if cat.Cardinality <= a.pieMaxCategories {
			if num.NonNegative && isAdditiveMeasure(num.Name) {
				return domain.ChartSpec{
					Kind:      domain.ChartPie,
					XField:    cat.Name,
					YField:    num.Name,
					Rationale: fmt.Sprintf("non-negative additive measure %s across %d categories", num.Name, cat.Cardinality),
				}
			}
			return domain.ChartSpec{
				Kind:      domain.ChartBar,
				XField:    cat.Name,
				YField:    num.Name,
				Rationale: fmt.Sprintf("%s by %s across %d categories", num.Name, cat.Name, cat.Cardinality),
			}
		}
	}

	// Trend over time
	if len(temporal) >= 1 && len(numeric) >= 1 {
		return domain.ChartSpec{
			Kind:      domain.ChartLine,
			XField:    temporal[0].Name,
			YField:    numeric[0].Name,
			Rationale: fmt.Sprintf("temporal column %s with numeric measure %s", temporal[0].Name, numeric[0].Name),
		}
	}

	// Two measures against each other
	if len(shapes) == 2 && len(numeric) == 2 {
		return domain.ChartSpec{
			Kind:      domain.ChartScatter,
			XField:    numeric[0].Name,
			YField:    numeric[1].Name,
			Rationale: "two numeric columns and no grouping column",
		}
	}

	// Distribution of a single measure
	if len(shapes) == 1 && len(numeric) == 1 && len(result.Rows) > a.histogramMinRows {
		return domain.ChartSpec{
			Kind:      domain.ChartHistogram,
			XField:    numeric[0].Name,
			Rationale: fmt.Sprintf("single numeric column across %d rows", len(result.Rows)),
		}
	}

	return domain.NoChart("no chart encoding matches this result shape")
}

// additiveHints mark measures that read as parts of a whole.
var additiveHints = []string{"count", "total", "sum", "amount", "quantity", "qty", "sales", "revenue", "share"}

func isAdditiveMeasure(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range additiveHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

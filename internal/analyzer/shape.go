package analyzer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
)

// ColumnKind is the semantic type of a result column, derived from its
// values rather than the declared database type so the same rules work
// across engines that return typed values, strings, or JSON numbers.
type ColumnKind string

const (
	ColumnNumeric     ColumnKind = "numeric"
	ColumnCategorical ColumnKind = "categorical"
	ColumnTemporal    ColumnKind = "temporal"
	ColumnText        ColumnKind = "text"
)

// ColumnShape summarizes one column of a result set.
type ColumnShape struct {
	Name        string
	Kind        ColumnKind
	Cardinality int
	NonNegative bool
}

// temporalLayouts are tried in order against string values. A bare year
// like "2024" is deliberately absent; year columns read better as numeric.
var temporalLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
}

// DetectShape classifies every column of the result set. The classification
// is a pure function of the values: the same result always yields the same
// shapes.
func DetectShape(result *domain.QueryResult) []ColumnShape {
	shapes := make([]ColumnShape, len(result.Columns))
	for i, name := range result.Columns {
		values := make([]any, 0, len(result.Rows))
		for _, row := range result.Rows {
			if i < len(row) {
				values = append(values, row[i])
			}
		}
		shapes[i] = classifyColumn(name, values)
	}
	return shapes
}

func classifyColumn(name string, values []any) ColumnShape {
	var (
		nonNull   int
		numerics  int
		temporals int
		bools     int
		maxLen    int
	)
	nonNegative := true
	distinct := make(map[string]struct{})

	for _, v := range values {
		if v == nil {
			continue
		}
		nonNull++
		distinct[fmt.Sprint(v)] = struct{}{}

		switch tv := v.(type) {
		case time.Time:
			temporals++
		case bool:
			bools++
		case string:
			if len(tv) > maxLen {
				maxLen = len(tv)
			}
			if isTemporalString(tv) {
				temporals++
			} else if f, err := strconv.ParseFloat(tv, 64); err == nil {
				numerics++
				if f < 0 {
					nonNegative = false
				}
			}
		default:
			if f, ok := numericValue(v); ok {
				numerics++
				if f < 0 {
					nonNegative = false
				}
			}
		}
	}

	shape := ColumnShape{Name: name, Cardinality: len(distinct), NonNegative: nonNegative}

	switch {
	case nonNull == 0:
		shape.Kind = ColumnText
	case temporals == nonNull:
		shape.Kind = ColumnTemporal
	case numerics == nonNull:
		shape.Kind = ColumnNumeric
	case bools == nonNull:
		shape.Kind = ColumnCategorical
	case maxLen > 64:
		shape.Kind = ColumnText
	default:
		shape.Kind = ColumnCategorical
	}

	return shape
}

func isTemporalString(s string) bool {
	for _, layout := range temporalLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

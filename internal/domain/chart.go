package domain

// ChartKind identifies the chart family chosen for a result set. "none"
// is a valid outcome: shapes with no obvious visual encoding are left to
// the table view.
type ChartKind string

const (
	ChartBar       ChartKind = "bar"
	ChartLine      ChartKind = "line"
	ChartPie       ChartKind = "pie"
	ChartHistogram ChartKind = "histogram"
	ChartScatter   ChartKind = "scatter"
	ChartNone      ChartKind = "none"
)

// ChartSpec is the chart recommendation derived from a result set's shape.
// It names fields, not pixels; rendering is the presentation layer's job.
type ChartSpec struct {
	Kind      ChartKind `json:"kind"`
	XField    string    `json:"x_field,omitempty"`
	YField    string    `json:"y_field,omitempty"`
	Rationale string    `json:"rationale"`
}

// NoChart builds the "none" spec with the given rationale.
func NoChart(rationale string) ChartSpec {
	return ChartSpec{Kind: ChartNone, Rationale: rationale}
}

package triangle

import "sort"

// Column names every triangle table must carry besides the metric column
const (
	ColumnAccidentPeriod = "accident_period"
	ColumnDevMonth       = "dev_month"
)

// RawRow represents one input record as header -> cell text
type RawRow map[string]string

// Table is an already-loaded long-format triangle
type Table struct {
	Source  string   // where the table came from (path, query, upload name)
	Headers []string // column headers in input order
	Rows    []RawRow
}

// HasColumn reports whether the table carries the named header
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// Row is one parsed observation of the metric for a cohort at a development age
type Row struct {
	AccidentPeriod string
	DevMonth       int
	Value          float64
	HasValue       bool // false when the metric cell was empty or not numeric
	Index          int  // position in the input table
}

// LinkRatio is a single development transition within one cohort
type LinkRatio struct {
	AccidentPeriod string
	DevMonth       int // starting development age
	Current        float64
	Next           float64
	Ratio          float64
}

// DevStepSummary aggregates every link ratio that starts at one development age
type DevStepSummary struct {
	VolumeWeightedLinkRatio *float64 `json:"volume_weighted_link_ratio"`
	SimpleAverageLinkRatio  float64  `json:"simple_average_link_ratio"`
	StdDevOfRatios          float64  `json:"std_dev_of_ratios"`
	Count                   int      `json:"count"`
	OutliersFound           int      `json:"outliers_found"`
}

// OutlierRecord carries everything a reviewer needs to inspect a flagged transition
type OutlierRecord struct {
	AccidentPeriod string  `json:"accident_period"`
	DevMonthStart  int     `json:"dev_month_start"`
	LinkRatio      float64 `json:"link_ratio"`
	CurrentValue   float64 `json:"current_value"`
	NextValue      float64 `json:"next_value"`
	ZScore         float64 `json:"z_score"`
}

// Diagnostics counts rows the pipeline dropped or could not use
type Diagnostics struct {
	RowsRead                 int `json:"rows_read"`
	RowsInvalidDevMonth      int `json:"rows_invalid_dev_month"`
	RowsMissingPeriod        int `json:"rows_missing_accident_period"`
	RowsInvalidMetric        int `json:"rows_invalid_metric"`
	ZeroCurrentExclusions    int `json:"zero_current_exclusions"`
	NonFiniteRatioExclusions int `json:"non_finite_ratio_exclusions"`
	RatioObservations        int `json:"ratio_observations"`
}

// AnalysisResult is the full output of one triangle analysis
type AnalysisResult struct {
	Metric            string                 `json:"metric"`
	SummaryByDevMonth map[int]DevStepSummary `json:"summary_by_dev_month"`
	Outliers          []OutlierRecord        `json:"outliers"`
	Diagnostics       Diagnostics            `json:"diagnostics"`
}

// DevMonths returns the summarized development ages in ascending order
func (r *AnalysisResult) DevMonths() []int {
	months := make([]int, 0, len(r.SummaryByDevMonth))
	for dev := range r.SummaryByDevMonth {
		months = append(months, dev)
	}
	sort.Ints(months)
	return months
}

// TotalOutliers sums the outlier counts across all development steps
func (r *AnalysisResult) TotalOutliers() int {
	total := 0
	for _, s := range r.SummaryByDevMonth {
		total += s.OutliersFound
	}
	return total
}

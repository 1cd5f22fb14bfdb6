package triangle

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gotriangle/adapters/datareadiness/coercer"
	domainTriangle "gotriangle/domain/triangle"
	"gotriangle/internal"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultOutlierZThreshold is the |z| a link ratio must exceed to be flagged
	DefaultOutlierZThreshold = 2.5

	// zeroStdEpsilon replaces a standard deviation of exactly zero when forming z-scores
	zeroStdEpsilon = 1e-9
)

// Options controls outlier sensitivity and per-group parallelism
type Options struct {
	OutlierZThreshold float64
	Workers           int
}

// DefaultOptions returns the standard 2.5 sigma rule on a single worker
func DefaultOptions() Options {
	return Options{
		OutlierZThreshold: DefaultOutlierZThreshold,
		Workers:           1,
	}
}

// Analyzer turns a long-format triangle into development-step summaries and outliers
type Analyzer struct {
	opts    Options
	coercer *coercer.TypeCoercer
	logger  *internal.Logger
}

// NewAnalyzer creates an analyzer. A nil logger discards output.
func NewAnalyzer(opts Options, logger *internal.Logger) *Analyzer {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if math.IsNaN(opts.OutlierZThreshold) || opts.OutlierZThreshold < 0 {
		logger.Warn("invalid outlier z threshold %v, using %v", opts.OutlierZThreshold, DefaultOutlierZThreshold)
		opts.OutlierZThreshold = DefaultOutlierZThreshold
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Analyzer{
		opts:    opts,
		coercer: coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()),
		logger:  logger,
	}
}

// Analyze runs the pipeline with the given threshold and default settings otherwise
func Analyze(table *domainTriangle.Table, metric string, outlierZThreshold float64) (*domainTriangle.AnalysisResult, error) {
	opts := DefaultOptions()
	opts.OutlierZThreshold = outlierZThreshold
	return NewAnalyzer(opts, nil).Analyze(table, metric)
}

// Analyze validates the table, derives link ratios per cohort and summarizes them per
// starting development month. Only DataSourceError and SchemaError are returned.
func (a *Analyzer) Analyze(table *domainTriangle.Table, metric string) (*domainTriangle.AnalysisResult, error) {
	if table == nil {
		return nil, domainTriangle.NewDataSourceError("<nil table>", nil)
	}
	if err := domainTriangle.CheckSchema(table, metric); err != nil {
		a.logger.Warn("schema check failed for %s: %v", table.Source, err)
		return nil, err
	}

	result := &domainTriangle.AnalysisResult{
		Metric:            metric,
		SummaryByDevMonth: make(map[int]domainTriangle.DevStepSummary),
		Outliers:          []domainTriangle.OutlierRecord{},
	}

	rows := a.parseRows(table, metric, &result.Diagnostics)
	sortRows(rows)
	observations := pairLinkRatios(rows, &result.Diagnostics)
	result.Diagnostics.RatioObservations = len(observations)

	groups := groupByDevMonth(observations)
	devMonths := make([]int, 0, len(groups))
	for dev := range groups {
		devMonths = append(devMonths, dev)
	}
	sort.Ints(devMonths)

	summaries := make([]domainTriangle.DevStepSummary, len(devMonths))
	outliers := make([][]domainTriangle.OutlierRecord, len(devMonths))

	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	for i, dev := range devMonths {
		g.Go(func() error {
			summaries[i], outliers[i] = summarizeGroup(groups[dev], a.opts.OutlierZThreshold)
			return nil
		})
	}
	_ = g.Wait()

	for i, dev := range devMonths {
		result.SummaryByDevMonth[dev] = summaries[i]
		result.Outliers = append(result.Outliers, outliers[i]...)
	}

	a.logger.Info("analyzed %s metric=%s rows=%d ratios=%d steps=%d outliers=%d",
		table.Source, metric, result.Diagnostics.RowsRead, len(observations), len(devMonths), len(result.Outliers))
	return result, nil
}

// parseRows converts raw cells into typed rows. Rows with an unparseable dev_month or an
// empty accident_period are dropped; rows with an unparseable metric stay without a value.
func (a *Analyzer) parseRows(table *domainTriangle.Table, metric string, diag *domainTriangle.Diagnostics) []domainTriangle.Row {
	diag.RowsRead = len(table.Rows)
	rows := make([]domainTriangle.Row, 0, len(table.Rows))
	metricCells := make([]string, 0, len(table.Rows))

	for i, raw := range table.Rows {
		dev, ok := a.coercer.ParseInteger(raw[domainTriangle.ColumnDevMonth])
		if !ok {
			diag.RowsInvalidDevMonth++
			a.logger.Trace("row %d: dropping unparseable dev_month %q", i, raw[domainTriangle.ColumnDevMonth])
			continue
		}
		period := a.coercer.NormalizeLabel(raw[domainTriangle.ColumnAccidentPeriod])
		if period == "" {
			diag.RowsMissingPeriod++
			a.logger.Trace("row %d: dropping empty accident_period", i)
			continue
		}

		row := domainTriangle.Row{AccidentPeriod: period, DevMonth: dev, Index: i}
		metricCells = append(metricCells, raw[metric])
		if v, ok := a.coercer.ParseNumeric(raw[metric]); ok {
			row.Value = v
			row.HasValue = true
		} else {
			diag.RowsInvalidMetric++
		}
		rows = append(rows, row)
	}

	if diag.RowsInvalidDevMonth > 0 {
		a.logger.Debug("dropped %d rows with unparseable dev_month", diag.RowsInvalidDevMonth)
	}
	if len(metricCells) > 0 && a.coercer.NumericRatio(metricCells) < 0.5 {
		a.logger.Warn("metric column %q is mostly non-numeric in %s", metric, table.Source)
	}
	return rows
}

// sortRows orders rows by (accident_period, dev_month); equal keys keep input order
func sortRows(rows []domainTriangle.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := comparePeriods(rows[i].AccidentPeriod, rows[j].AccidentPeriod); c != 0 {
			return c < 0
		}
		return rows[i].DevMonth < rows[j].DevMonth
	})
}

// comparePeriods orders numeric labels numerically and ahead of non-numeric labels,
// which compare lexically.
func comparePeriods(a, b string) int {
	if a == b {
		return 0
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if fa < fb {
			return -1
		}
		if fa > fb {
			return 1
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// pairLinkRatios pairs each row with the next row of its cohort in sorted order
func pairLinkRatios(rows []domainTriangle.Row, diag *domainTriangle.Diagnostics) []domainTriangle.LinkRatio {
	var observations []domainTriangle.LinkRatio
	for i := 0; i+1 < len(rows); i++ {
		cur, next := rows[i], rows[i+1]
		if cur.AccidentPeriod != next.AccidentPeriod {
			continue
		}
		if !cur.HasValue || !next.HasValue {
			continue
		}
		if cur.Value == 0 {
			diag.ZeroCurrentExclusions++
			continue
		}
		ratio := next.Value / cur.Value
		if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
			diag.NonFiniteRatioExclusions++
			continue
		}
		observations = append(observations, domainTriangle.LinkRatio{
			AccidentPeriod: cur.AccidentPeriod,
			DevMonth:       cur.DevMonth,
			Current:        cur.Value,
			Next:           next.Value,
			Ratio:          ratio,
		})
	}
	return observations
}

func groupByDevMonth(observations []domainTriangle.LinkRatio) map[int][]domainTriangle.LinkRatio {
	groups := make(map[int][]domainTriangle.LinkRatio)
	for _, obs := range observations {
		groups[obs.DevMonth] = append(groups[obs.DevMonth], obs)
	}
	return groups
}

package app

import (
	"context"
	"time"

	domainTriangle "gotriangle/domain/triangle"
	"gotriangle/internal"
	"gotriangle/internal/analysis/triangle"
	"gotriangle/internal/config"
	"gotriangle/ports"

	"github.com/google/uuid"
)

// AnalysisService loads a triangle from a source and runs the development analysis on it
type AnalysisService struct {
	defaults config.AnalysisConfig
	logger   *internal.Logger
}

// AnalysisRequest names the source and optional per-run overrides
type AnalysisRequest struct {
	Source            ports.TableSource
	Metric            string   // empty uses the configured default
	OutlierZThreshold *float64 // nil uses the configured default
}

// AnalysisRun wraps a result with its run identity and timing
type AnalysisRun struct {
	RunID     string                         `json:"run_id"`
	Source    string                         `json:"source"`
	RuntimeMs int64                          `json:"runtime_ms"`
	Result    *domainTriangle.AnalysisResult `json:"result"`
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(defaults config.AnalysisConfig, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &AnalysisService{defaults: defaults, logger: logger}
}

// Run loads the table and analyzes it. Errors are DataSourceError or SchemaError.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*AnalysisRun, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "source", req.Source.Describe())

	table, err := req.Source.Load(ctx)
	if err != nil {
		logger.Warn("load failed: %v", err)
		return nil, err
	}

	metric := req.Metric
	if metric == "" {
		metric = s.defaults.Metric
	}
	opts := triangle.Options{
		OutlierZThreshold: s.defaults.OutlierZThreshold,
		Workers:           s.defaults.Workers,
	}
	if req.OutlierZThreshold != nil {
		opts.OutlierZThreshold = *req.OutlierZThreshold
	}

	result, err := triangle.NewAnalyzer(opts, logger).Analyze(table, metric)
	if err != nil {
		return nil, err
	}

	return &AnalysisRun{
		RunID:     runID,
		Source:    req.Source.Describe(),
		RuntimeMs: time.Since(startTime).Milliseconds(),
		Result:    result,
	}, nil
}

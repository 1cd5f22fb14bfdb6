package app

import (
	"context"
	"errors"
	"testing"

	domainTriangle "gotriangle/domain/triangle"
	"gotriangle/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTableSource struct {
	mock.Mock
}

func (m *MockTableSource) Load(ctx context.Context) (*domainTriangle.Table, error) {
	args := m.Called(ctx)
	table, _ := args.Get(0).(*domainTriangle.Table)
	return table, args.Error(1)
}

func (m *MockTableSource) Describe() string {
	return "mock"
}

func defaults() config.AnalysisConfig {
	return config.AnalysisConfig{Metric: "paid", OutlierZThreshold: 2.5, Workers: 2}
}

func TestAnalysisService_Run(t *testing.T) {
	src := new(MockTableSource)
	src.On("Load", mock.Anything).Return(&domainTriangle.Table{
		Source:  "mock",
		Headers: []string{"accident_period", "dev_month", "paid"},
		Rows: []domainTriangle.RawRow{
			{"accident_period": "2020", "dev_month": "12", "paid": "100"},
			{"accident_period": "2020", "dev_month": "24", "paid": "150"},
		},
	}, nil)

	run, err := NewAnalysisService(defaults(), nil).Run(context.Background(), AnalysisRequest{Source: src})
	require.NoError(t, err)

	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, "mock", run.Source)
	assert.Equal(t, "paid", run.Result.Metric)
	assert.Equal(t, 1.5, *run.Result.SummaryByDevMonth[12].VolumeWeightedLinkRatio)
	src.AssertExpectations(t)
}

func TestAnalysisService_Overrides(t *testing.T) {
	src := new(MockTableSource)
	src.On("Load", mock.Anything).Return(&domainTriangle.Table{
		Headers: []string{"accident_period", "dev_month", "paid"},
	}, nil)

	_, err := NewAnalysisService(defaults(), nil).Run(context.Background(), AnalysisRequest{Source: src, Metric: "incurred"})
	assert.True(t, errors.Is(err, domainTriangle.ErrSchema))
}

func TestAnalysisService_LoadFailure(t *testing.T) {
	src := new(MockTableSource)
	src.On("Load", mock.Anything).Return(nil, domainTriangle.NewDataSourceError("mock", errors.New("boom")))

	run, err := NewAnalysisService(defaults(), nil).Run(context.Background(), AnalysisRequest{Source: src})
	assert.Nil(t, run)
	assert.True(t, errors.Is(err, domainTriangle.ErrDataSource))
}

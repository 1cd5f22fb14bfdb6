package triangle

import (
	"errors"
	"fmt"
	"strings"

	apperrors "gotriangle/internal/errors"
)

var (
	ErrDataSource = errors.New("data source error")
	ErrSchema     = errors.New("schema error")
)

// DataSourceError reports a table that could not be found or read
type DataSourceError struct {
	Source string
	Cause  error
}

// NewDataSourceError wraps a load failure for the given source
func NewDataSourceError(source string, cause error) *DataSourceError {
	return &DataSourceError{Source: source, Cause: cause}
}

func (e *DataSourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot read data source %q: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("cannot read data source %q", e.Source)
}

func (e *DataSourceError) Unwrap() error { return e.Cause }

func (e *DataSourceError) Is(target error) bool { return target == ErrDataSource }

func (e *DataSourceError) Code() string { return apperrors.CodeDataSource }

// SchemaError reports required columns absent from the table
type SchemaError struct {
	Missing   []string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: [%s]. available: [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

func (e *SchemaError) Code() string { return apperrors.CodeSchema }

// CheckSchema returns a SchemaError when accident_period, dev_month or metric is absent.
// Missing columns are listed in that order, once each.
func CheckSchema(t *Table, metric string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, col := range []string{ColumnAccidentPeriod, ColumnDevMonth, metric} {
		if seen[col] {
			continue
		}
		seen[col] = true
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	available := make([]string, len(t.Headers))
	copy(available, t.Headers)
	return &SchemaError{Missing: missing, Available: available}
}

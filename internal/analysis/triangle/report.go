package triangle

import (
	"errors"

	domainTriangle "gotriangle/domain/triangle"
	apperrors "gotriangle/internal/errors"
)

// ErrorReport is the structured form of a failed analysis handed to CLI and HTTP callers
type ErrorReport struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the code, message and any column or source context of the failure
type ErrorDetail struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Source    string   `json:"source,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	Available []string `json:"available,omitempty"`
}

// NewErrorReport renders err for relaying to an end user
func NewErrorReport(err error) ErrorReport {
	detail := ErrorDetail{
		Code:    apperrors.GetCode(err),
		Message: err.Error(),
	}

	var schemaErr *domainTriangle.SchemaError
	if errors.As(err, &schemaErr) {
		detail.Missing = schemaErr.Missing
		detail.Available = schemaErr.Available
	}
	var sourceErr *domainTriangle.DataSourceError
	if errors.As(err, &sourceErr) {
		detail.Source = sourceErr.Source
	}
	return ErrorReport{Error: detail}
}

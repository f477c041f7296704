package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

var (
	// ErrPipelineNotFound is returned when a pipeline id is unknown.
	ErrPipelineNotFound = errors.New("pipeline not found")
	// ErrPipelineRunning is returned when a manual trigger races an active run.
	ErrPipelineRunning = errors.New("pipeline is already running")
)

// AcquisitionCode classifies acquisition failures.
type AcquisitionCode string

const (
	CodeUnsupportedSource AcquisitionCode = "unsupported_source"
	CodeInvalidType       AcquisitionCode = "invalid_type"
	CodeQuotaExceeded     AcquisitionCode = "quota_exceeded"
	CodeRequestFailed     AcquisitionCode = "request_failed"
)

// AcquisitionError is the base error for source acquisition failures.
type AcquisitionError struct {
	Provider  model.Provider
	Code      AcquisitionCode
	Retryable bool
	Err       error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquire from %s: %s: %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("acquire from %s: %s", e.Provider, e.Code)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// QuotaExceededError signals a source's request budget is exhausted. Always
// retryable once the quota resets.
type QuotaExceededError struct {
	Provider model.Provider
	Limit    int
	Usage    int
	ResetAt  time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d, resets %s",
		e.Provider, e.Usage, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// ValidationError rejects one record. Never retryable.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %s invalid: %s (%s)", e.RecordID, e.Reason, e.Field)
}

package analyses

import (
	"time"

	"resume-ats/internal/scoring"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	SourceText   = "text"
	SourceUpload = "upload"
)

// Analysis is one scoring job for a resume against a job description.
type Analysis struct {
	ID             string                  `json:"id"`
	UserID         string                  `json:"userId"`
	Status         string                  `json:"status"`
	Source         string                  `json:"source"`
	FileName       string                  `json:"fileName,omitempty"`
	StorageKey     string                  `json:"-"`
	ResumeText     string                  `json:"-"`
	JobDescription string                  `json:"-"`
	Result         *scoring.AnalysisResult `json:"result,omitempty"`
	ErrorCode      string                  `json:"errorCode,omitempty"`
	ErrorMessage   string                  `json:"errorMessage,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
	StartedAt      *time.Time              `json:"startedAt,omitempty"`
	CompletedAt    *time.Time              `json:"completedAt,omitempty"`
}

// Terminal reports whether the analysis reached a final status.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// Retryable reports whether a failed analysis may run again when its job is
// redelivered. Only storage failures qualify.
func (a Analysis) Retryable() bool {
	return a.Status == StatusFailed && a.ErrorCode == ErrorCodeStorage
}

// Package analyses stores scoring jobs and runs them through the scoring engine.
package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"resume-ats/internal/extract"
	"resume-ats/internal/queue"
	"resume-ats/internal/scoring"
	"resume-ats/internal/shared/metrics"
	"resume-ats/internal/shared/storage/object"
	"resume-ats/internal/shared/telemetry"
	"resume-ats/internal/usage"
)

const (
	MaxResumeChars = 100_000
	MaxJDChars     = 20_000
)

// Dispatch selects how a created analysis reaches the engine.
type Dispatch int

const (
	// DispatchAsync runs the analysis in a goroutine.
	DispatchAsync Dispatch = iota
	// DispatchInline runs the analysis before Create returns.
	DispatchInline
	// DispatchQueue publishes a job for a worker.
	DispatchQueue
)

// Service contains business logic for analyses.
type Service struct {
	Repo     Repo
	Engine   *scoring.Engine
	Usage    *usage.Service
	Store    object.Store
	Queue    queue.Publisher
	Dispatch Dispatch

	now func() time.Time
}

// CreateInput describes a new analysis.
type CreateInput struct {
	UserID         string
	ResumeText     string
	JobDescription string
	Source         string
	FileName       string
	StorageKey     string
}

// UploadInput describes an uploaded resume file.
type UploadInput struct {
	UserID         string
	FileName       string
	ContentType    string
	Body           io.Reader
	JobDescription string
	// Force skips the resume plausibility check.
	Force bool
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Create validates in, stores the analysis, charges one unit of the user's
// quota and dispatches it. Quota is only charged once the analysis exists.
func (s *Service) Create(ctx context.Context, in CreateInput) (Analysis, error) {
	in.ResumeText = strings.TrimSpace(in.ResumeText)
	in.JobDescription = strings.TrimSpace(in.JobDescription)
	if err := validateInput(in); err != nil {
		return Analysis{}, err
	}
	if in.Source == "" {
		in.Source = SourceText
	}

	if err := s.checkQuota(ctx, in.UserID); err != nil {
		return Analysis{}, err
	}

	now := s.clock()
	a := Analysis{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Status:         StatusQueued,
		Source:         in.Source,
		FileName:       in.FileName,
		StorageKey:     in.StorageKey,
		ResumeText:     in.ResumeText,
		JobDescription: in.JobDescription,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Repo.Create(ctx, a); err != nil {
		return Analysis{}, fmt.Errorf("create analysis: %w", err)
	}
	if s.Usage != nil {
		// A concurrent request can take the last unit between the check and here.
		if _, err := s.Usage.Consume(ctx, in.UserID, 1); err != nil {
			code := ErrorCodeUsage
			if !errors.Is(err, usage.ErrLimitReached) {
				code = ErrorCodeStorage
			}
			s.fail(ctx, a, code, err, nil)
			return Analysis{}, err
		}
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"user_id":     a.UserID,
		"analysis_id": a.ID,
		"status":      StatusQueued,
		"source":      a.Source,
	})

	switch s.Dispatch {
	case DispatchInline:
		if err := s.ProcessAnalysis(ctx, a.ID); err != nil {
			return a, err
		}
		return s.Repo.GetByID(ctx, a.ID)
	case DispatchQueue:
		if s.Queue == nil {
			s.fail(ctx, a, ErrorCodeQueue, errors.New("job queue not configured"), nil)
			return a, fmt.Errorf("dispatch analysis %s: job queue not configured", a.ID)
		}
		msg := queue.NewMessage(a.ID, requestIDFromContext(ctx), now)
		if err := s.Queue.Publish(ctx, msg); err != nil {
			s.fail(ctx, a, ErrorCodeQueue, err, nil)
			return a, fmt.Errorf("dispatch analysis %s: %w", a.ID, err)
		}
	default:
		go func(ctx context.Context, id string) {
			if err := s.ProcessAnalysis(ctx, id); err != nil {
				telemetry.Error("analysis.async_failed", map[string]any{"analysis_id": id, "error": err.Error()})
			}
		}(detached(ctx), a.ID)
	}
	return a, nil
}

// Upload extracts and checks the file, stores it with its extracted text and
// creates an analysis that refers to the stored copy.
// The returned Validation is filled even when the plausibility check fails.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Analysis, extract.Validation, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Analysis{}, extract.Validation{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if s.Store == nil {
		return Analysis{}, extract.Validation{}, errors.New("object store not configured")
	}
	if s.Engine == nil {
		return Analysis{}, extract.Validation{}, errors.New("scoring engine not configured")
	}
	raw, err := io.ReadAll(io.LimitReader(in.Body, extract.MaxBytes+1))
	if err != nil {
		return Analysis{}, extract.Validation{}, fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > extract.MaxBytes {
		return Analysis{}, extract.Validation{}, fmt.Errorf("%w: %w", ErrInvalidInput, extract.ErrTooLarge)
	}

	text, err := extract.FromBytes(ctx, raw, in.ContentType, in.FileName)
	if err != nil {
		return Analysis{}, extract.Validation{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	v, verr := extract.ValidateResume(s.Engine.Rules(), text)
	if verr != nil && !in.Force {
		return Analysis{}, v, verr
	}
	if utf8.RuneCountInString(text) > MaxResumeChars {
		return Analysis{}, v, fmt.Errorf("%w: resume text exceeds %d characters", ErrInvalidInput, MaxResumeChars)
	}
	if err := s.checkQuota(ctx, in.UserID); err != nil {
		return Analysis{}, v, err
	}

	obj, err := s.Store.Put(ctx, in.UserID, in.FileName, bytes.NewReader(raw))
	if err != nil {
		return Analysis{}, v, fmt.Errorf("store upload: %w", err)
	}
	if _, err := s.Store.PutKey(ctx, extract.ExtractedKey(obj.Key), "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return Analysis{}, v, fmt.Errorf("store extracted text: %w", err)
	}

	// The worker reads the extracted copy back from the store.
	a, err := s.Create(ctx, CreateInput{
		UserID:         in.UserID,
		JobDescription: in.JobDescription,
		Source:         SourceUpload,
		FileName:       in.FileName,
		StorageKey:     obj.Key,
	})
	return a, v, err
}

// Get returns an analysis owned by userID. Analyses of other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if a.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// ProcessAnalysis scores a stored analysis. Completed analyses and permanent
// failures are left untouched, so redelivered jobs are harmless; analyses
// that failed on storage run again.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) (err error) {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("analysis lookup id=%s: %w", analysisID, err)
	}
	if a.Terminal() && !a.Retryable() {
		telemetry.Info("analysis.skipped", map[string]any{"analysis_id": a.ID, "status": a.Status})
		return nil
	}

	startedAt := s.clock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.fail(ctx, a, ErrorCodeInternal, err, &startedAt)
		}
	}()

	if err := s.Repo.MarkProcessing(ctx, a.ID, startedAt); err != nil {
		return fmt.Errorf("set processing id=%s: %w", a.ID, err)
	}
	metrics.IncAnalysisStarted()
	s.logTransition(ctx, a, StatusQueued, StatusProcessing, nil)

	if s.Engine == nil {
		err := errors.New("scoring engine not configured")
		s.fail(ctx, a, ErrorCodeInternal, err, &startedAt)
		return err
	}

	text := a.ResumeText
	if text == "" && a.StorageKey != "" {
		if s.Store == nil {
			err := errors.New("object store not configured")
			s.fail(ctx, a, ErrorCodeStorage, err, &startedAt)
			return err
		}
		text, err = extract.StoredText(ctx, s.Store, a.StorageKey, "", a.FileName)
		if err != nil {
			code := ErrorCodeStorage
			if errors.Is(err, extract.ErrUnsupported) || errors.Is(err, extract.ErrEmpty) {
				code = ErrorCodeValidation
			}
			s.fail(ctx, a, code, err, &startedAt)
			return err
		}
	}

	result := s.Engine.Analyze(ctx, text, a.JobDescription)

	completedAt := s.clock()
	if err := s.Repo.Complete(ctx, a.ID, result, completedAt); err != nil {
		s.fail(ctx, a, ErrorCodeStorage, err, &startedAt)
		return fmt.Errorf("set result id=%s: %w", a.ID, err)
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(startedAt, completedAt))
	s.logTransition(ctx, a, StatusProcessing, StatusCompleted, map[string]any{
		"duration_ms": durationMs(startedAt, completedAt),
		"ats_score":   result.ATSScore,
		"fallback":    result.Fallback,
	})
	return nil
}

func (s *Service) checkQuota(ctx context.Context, userID string) error {
	if s.Usage == nil {
		return nil
	}
	ok, _, err := s.Usage.CanConsume(ctx, userID, 1)
	if err != nil {
		return err
	}
	if !ok {
		return usage.ErrLimitReached
	}
	return nil
}

func (s *Service) fail(ctx context.Context, a Analysis, code string, cause error, startedAt *time.Time) {
	completedAt := s.clock()
	msg := sanitizeError(cause)
	if err := s.Repo.Fail(context.WithoutCancel(ctx), a.ID, code, msg, completedAt); err != nil {
		telemetry.Error("analysis.fail_update_failed", map[string]any{
			"analysis_id": a.ID,
			"error":       err.Error(),
			"cause":       msg,
		})
	}
	metrics.IncAnalysisFailed()
	fields := map[string]any{"error_code": code, "error": msg}
	from := StatusQueued
	if startedAt != nil {
		from = StatusProcessing
		fields["duration_ms"] = durationMs(*startedAt, completedAt)
		metrics.ObserveAnalysisDurationMs(durationMs(*startedAt, completedAt))
	}
	s.logTransition(ctx, a, from, StatusFailed, fields)
}

func (s *Service) logTransition(ctx context.Context, a Analysis, from, to string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           a.UserID,
		"analysis_id":       a.ID,
		"status":            to,
		"status_transition": from + "->" + to,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("analysis.status", fields)
}

func validateInput(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	case in.ResumeText == "" && in.StorageKey == "":
		return fmt.Errorf("%w: resume text is required", ErrInvalidInput)
	case in.JobDescription == "":
		return fmt.Errorf("%w: job description is required", ErrInvalidInput)
	case utf8.RuneCountInString(in.ResumeText) > MaxResumeChars:
		return fmt.Errorf("%w: resume text exceeds %d characters", ErrInvalidInput, MaxResumeChars)
	case utf8.RuneCountInString(in.JobDescription) > MaxJDChars:
		return fmt.Errorf("%w: job description exceeds %d characters", ErrInvalidInput, MaxJDChars)
	}
	return nil
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(err.Error()))
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

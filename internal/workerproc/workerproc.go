// Package workerproc turns queue message bodies into analysis runs.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"resume-ats/internal/analyses"
	"resume-ats/internal/queue"
	"resume-ats/internal/shared/telemetry"
)

// Processor scores one stored analysis.
type Processor interface {
	ProcessAnalysis(ctx context.Context, analysisID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string   { return "empty message body" }
func (e ErrEmptyBody) Permanent() bool { return true }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error   { return e.Err }
func (e ErrDecode) Permanent() bool { return true }

// ErrMissingAnalysisID indicates a message without an analysis id.
type ErrMissingAnalysisID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingAnalysisID) Error() string   { return "missing analysis id" }
func (e ErrMissingAnalysisID) Permanent() bool { return true }

// ErrProcess indicates processing failed after the message parsed.
// Unknown analyses are not retried.
type ErrProcess struct {
	AnalysisID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process analysis"
	}
	return "process analysis: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error   { return e.Err }
func (e ErrProcess) Permanent() bool { return errors.Is(e.Err, analyses.ErrNotFound) }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return msg, meta, ErrMissingAnalysisID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses body and runs the analysis it names.
func HandleMessage(ctx context.Context, p Processor, body string) error {
	if p == nil {
		return errors.New("analysis processor not configured")
	}
	msg, meta, err := ParseMessage(body)
	if err != nil {
		telemetry.Error("worker.analysis.rejected", map[string]any{
			"error":       err.Error(),
			"body_len":    meta.BodyLen,
			"body_sha256": meta.BodySHA,
		})
		return err
	}

	fields := map[string]any{"analysis_id": msg.AnalysisID, "request_id": msg.RequestID}
	telemetry.Info("worker.analysis.received", fields)

	if err := p.ProcessAnalysis(analyses.WithRequestID(ctx, msg.RequestID), msg.AnalysisID); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.failed", fields)
		return ErrProcess{AnalysisID: msg.AnalysisID, RequestID: msg.RequestID, Err: err}
	}
	telemetry.Info("worker.analysis.completed", fields)
	return nil
}

// Handler adapts p to a queue.Handler.
func Handler(p Processor) queue.Handler {
	return func(ctx context.Context, body string) error {
		return HandleMessage(ctx, p, body)
	}
}

package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resume-ats/internal/shared/metrics"
	"resume-ats/internal/shared/telemetry"
)

const (
	defaultVisibilitySeconds = 300
	defaultConcurrency       = 4
	defaultShutdownTimeout   = 30 * time.Second
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSOptions tunes the SQS consumer.
type SQSOptions struct {
	Concurrency       int
	VisibilitySeconds int32
	ShutdownTimeout   time.Duration
}

// SQSClient publishes to and consumes from one SQS queue.
type SQSClient struct {
	api      SQSAPI
	queueURL string
	opts     SQSOptions
}

// NewSQSClient loads the default AWS config for region.
func NewSQSClient(ctx context.Context, region, queueURL string, opts SQSOptions) (*SQSClient, error) {
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("sqs queue url is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSClientWithAPI(sqs.NewFromConfig(cfg), queueURL, opts), nil
}

// NewSQSClientWithAPI wires an existing SQS client.
func NewSQSClientWithAPI(api SQSAPI, queueURL string, opts SQSOptions) *SQSClient {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.VisibilitySeconds <= 0 {
		opts.VisibilitySeconds = defaultVisibilitySeconds
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &SQSClient{api: api, queueURL: queueURL, opts: opts}
}

// Publish sends msg to the queue.
func (s *SQSClient) Publish(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}
	if _, err := s.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	}); err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	metrics.IncJobPublished()
	return nil
}

// Consume long-polls the queue and runs h on up to Concurrency messages at a
// time until ctx is cancelled. In-flight jobs get ShutdownTimeout to finish.
func (s *SQSClient) Consume(ctx context.Context, h Handler) error {
	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"backend":     "sqs",
		"queue":       s.queueURL,
		"concurrency": s.opts.Concurrency,
		"visibility":  s.opts.VisibilitySeconds,
	})

poll:
	for ctx.Err() == nil {
		resp, err := s.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   s.opts.VisibilitySeconds,
			AttributeNames:      []sqstypes.QueueAttributeName{"ApproximateReceiveCount"},
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, m := range resp.Messages {
			select {
			case <-ctx.Done():
				break poll
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				s.handle(ctx, h, m)
			}(m)
		}
	}

	return waitTimeout(&wg, s.opts.ShutdownTimeout)
}

func (s *SQSClient) handle(ctx context.Context, h Handler, m sqstypes.Message) {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(m.MessageId),
		"receive_count":  receiveCount(m),
	}
	err := h(ctx, aws.ToString(m.Body))
	switch {
	case err == nil:
		metrics.IncJobProcessed()
	case IsPermanent(err):
		metrics.IncJobFailed()
		fields["error"] = err.Error()
		telemetry.Error("worker.message_dropped", fields)
	default:
		metrics.IncJobFailed()
		fields["error"] = err.Error()
		telemetry.Error("worker.message_retry", fields)
		return
	}
	if _, err := s.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.delete_failed", fields)
	}
}

func receiveCount(m sqstypes.Message) int {
	n, err := strconv.Atoi(m.Attributes["ApproximateReceiveCount"])
	if err != nil {
		return 0
	}
	return n
}

// ErrShutdownTimeout reports that in-flight jobs were still running at exit.
var ErrShutdownTimeout = errors.New("queue: shutdown timeout with jobs in flight")

func waitTimeout(wg *sync.WaitGroup, d time.Duration) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(d):
		return ErrShutdownTimeout
	}
}

var _ Publisher = (*SQSClient)(nil)

// Package worker runs the long-lived loops of the process: the queue
// consumer and the purger.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"cdn-server/services/cdn-worker/internal/domain/job"
	"cdn-server/services/cdn-worker/internal/domain/retry"
	"cdn-server/services/cdn-worker/internal/infrastructure/metrics"
	"cdn-server/services/cdn-worker/internal/infrastructure/observability"
)

// Handler executes one job of a single type.
type Handler interface {
	Handle(ctx context.Context, msg *job.Message) error
}

// sqsAPI is the slice of the SQS client the consumer uses.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// ConsumerConfig contains the queue consumption knobs.
type ConsumerConfig struct {
	QueueURL          string
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	BatchSize         int
	JobTimeout        time.Duration
}

// Consumer long-polls the queue and drives each message through the job
// ledger and the type-specific handler. Any number of worker processes may
// run the same loop; correctness rests entirely on the ledger's atomic
// claim, not on coordination between consumers.
type Consumer struct {
	client    sqsAPI
	cfg       ConsumerConfig
	jobs      job.Ledger
	processor Handler
	deleter   Handler
	backoff   retry.Policy
	log       zerolog.Logger
}

func NewConsumer(
	client sqsAPI,
	cfg ConsumerConfig,
	jobs job.Ledger,
	processor Handler,
	deleter Handler,
	backoff retry.Policy,
	log zerolog.Logger,
) *Consumer {
	return &Consumer{
		client:    client,
		cfg:       cfg,
		jobs:      jobs,
		processor: processor,
		deleter:   deleter,
		backoff:   backoff,
		log:       log.With().Str("component", "consumer").Logger(),
	}
}

// Run polls until ctx is cancelled. Cancellation stops the intake of new
// messages; the messages of the current batch are still driven to a ledger
// state before the loop exits.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Str("queue_url", c.cfg.QueueURL).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("consumer stopped")
			return ctx.Err()
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.cfg.QueueURL),
			MaxNumberOfMessages: int32(c.cfg.BatchSize),
			WaitTimeSeconds:     int32(c.cfg.WaitTime.Seconds()),
			VisibilityTimeout:   int32(c.cfg.VisibilityTimeout.Seconds()),
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("receive messages")
			c.sleep(ctx, time.Second)
			continue
		}

		for _, message := range out.Messages {
			// Detached from the shutdown signal so in-flight work always
			// reaches a ledger state, bounded by the job timeout.
			msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.JobTimeout)
			ack := c.handleMessage(msgCtx, aws.ToString(message.Body))
			cancel()

			if ack {
				c.deleteMessage(context.WithoutCancel(ctx), aws.ToString(message.ReceiptHandle))
			}
		}
	}
}

// handleMessage drives one message body through claim, dispatch, and status
// recording. The return value is whether to acknowledge (delete) the message.
func (c *Consumer) handleMessage(ctx context.Context, body string) bool {
	msg, err := job.DecodeMessage([]byte(body))
	if err != nil {
		// Poison messages are dropped so they cannot loop forever.
		c.log.Warn().Err(err).Msg("dropping malformed message")
		metrics.RecordQueueMessage("malformed")
		return true
	}

	logger := c.log.With().Str("job_id", msg.JobID).Str("job_type", string(msg.Type)).Logger()

	outcome, err := c.jobs.Claim(ctx, msg.JobID, msg.Type)
	if err != nil {
		// Store connectivity failure: leave the message for redelivery.
		logger.Error().Err(err).Msg("claim failed")
		metrics.RecordQueueMessage("claim_error")
		return false
	}

	switch outcome {
	case job.ClaimDeniedTerminal:
		logger.Debug().Msg("job already terminal, acknowledging")
		metrics.RecordQueueMessage("already_terminal")
		return true
	case job.ClaimDeniedLocked:
		logger.Debug().Msg("job locked by another worker, leaving for redelivery")
		metrics.RecordQueueMessage("locked")
		return false
	}

	ctx, span := observability.StartJobSpan(ctx, msg.JobID, string(msg.Type))
	defer span.End()

	start := time.Now()
	handleErr := c.dispatch(ctx, msg)
	elapsed := time.Since(start)

	if handleErr == nil {
		if err := c.jobs.UpdateStatus(ctx, msg.JobID, job.StatusCompleted); err != nil {
			logger.Error().Err(err).Msg("mark job completed")
			metrics.RecordQueueMessage("status_error")
			return false
		}
		logger.Info().Dur("elapsed", elapsed).Msg("job completed")
		metrics.RecordJob(string(msg.Type), "completed", elapsed.Seconds())
		metrics.RecordQueueMessage("completed")
		return true
	}

	observability.RecordError(span, handleErr)
	logger.Error().Err(handleErr).Dur("elapsed", elapsed).Msg("job failed")

	if err := c.jobs.RecordFailure(ctx, msg.JobID, handleErr.Error(), errorKind(handleErr)); err != nil {
		logger.Error().Err(err).Msg("record job failure")
	}

	maxed, err := c.jobs.MaxAttemptsReached(ctx, msg.JobID)
	if err != nil {
		logger.Error().Err(err).Msg("check max attempts")
		metrics.RecordQueueMessage("status_error")
		return false
	}

	if maxed {
		// Permanent failure, operator-visible through the error fields.
		if err := c.jobs.UpdateStatus(ctx, msg.JobID, job.StatusFailed); err != nil {
			logger.Error().Err(err).Msg("mark job failed")
			metrics.RecordQueueMessage("status_error")
			return false
		}
		metrics.RecordJob(string(msg.Type), "failed", elapsed.Seconds())
		metrics.RecordQueueMessage("failed")
		return true
	}

	if err := c.jobs.UpdateStatus(ctx, msg.JobID, job.StatusFailedRetryable); err != nil {
		logger.Error().Err(err).Msg("mark job retryable")
		metrics.RecordQueueMessage("status_error")
		return false
	}

	current, err := c.jobs.Get(ctx, msg.JobID)
	if err == nil && current != nil {
		logger.Info().
			Int("attempt", current.AttemptCount).
			Dur("retry_after", c.backoff.ComputeDelay(current.AttemptCount)).
			Msg("job scheduled for retry via redelivery")
	}
	metrics.RecordJob(string(msg.Type), "retryable", elapsed.Seconds())
	metrics.RecordQueueMessage("retryable")
	return false
}

func (c *Consumer) dispatch(ctx context.Context, msg *job.Message) error {
	switch msg.Type {
	case job.TypeProcessFile:
		return c.processor.Handle(ctx, msg)
	case job.TypeDeleteFile:
		return c.deleter.Handle(ctx, msg)
	default:
		// DecodeMessage rejects unknown types before we get here.
		return errors.New("unreachable: unknown job type " + string(msg.Type))
	}
}

// ackTimeout bounds the DeleteMessage call. The ack runs on a context
// detached from the shutdown signal, so without its own deadline a hung
// SQS call would block process exit.
const ackTimeout = 10 * time.Second

func (c *Consumer) deleteMessage(ctx context.Context, receiptHandle string) {
	ctx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		c.log.Error().Err(err).Msg("delete message")
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "handler_error"
	}
}

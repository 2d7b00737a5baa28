package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"cdn-server/services/cdn-worker/internal/domain/job"
	"cdn-server/services/cdn-worker/internal/domain/retry"
)

type fakeQueue struct {
	ReceiveMessageFunc func(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageFunc  func(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func (f *fakeQueue) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return f.ReceiveMessageFunc(ctx, params, optFns...)
}

func (f *fakeQueue) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	return f.DeleteMessageFunc(ctx, params, optFns...)
}

type fakeJobLedger struct {
	ClaimFunc              func(ctx context.Context, jobID string, jobType job.Type) (job.ClaimOutcome, error)
	UpdateStatusFunc       func(ctx context.Context, jobID string, status job.Status) error
	RecordFailureFunc      func(ctx context.Context, jobID, message, kind string) error
	MaxAttemptsReachedFunc func(ctx context.Context, jobID string) (bool, error)
	GetFunc                func(ctx context.Context, jobID string) (*job.Job, error)

	statuses []job.Status
}

func (f *fakeJobLedger) Claim(ctx context.Context, jobID string, jobType job.Type) (job.ClaimOutcome, error) {
	if f.ClaimFunc == nil {
		return job.ClaimGranted, nil
	}
	return f.ClaimFunc(ctx, jobID, jobType)
}

func (f *fakeJobLedger) UpdateStatus(ctx context.Context, jobID string, status job.Status) error {
	f.statuses = append(f.statuses, status)
	if f.UpdateStatusFunc == nil {
		return nil
	}
	return f.UpdateStatusFunc(ctx, jobID, status)
}

func (f *fakeJobLedger) RecordFailure(ctx context.Context, jobID, message, kind string) error {
	if f.RecordFailureFunc == nil {
		return nil
	}
	return f.RecordFailureFunc(ctx, jobID, message, kind)
}

func (f *fakeJobLedger) MaxAttemptsReached(ctx context.Context, jobID string) (bool, error) {
	if f.MaxAttemptsReachedFunc == nil {
		return false, nil
	}
	return f.MaxAttemptsReachedFunc(ctx, jobID)
}

func (f *fakeJobLedger) Get(ctx context.Context, jobID string) (*job.Job, error) {
	if f.GetFunc == nil {
		return &job.Job{ID: jobID, AttemptCount: 1}, nil
	}
	return f.GetFunc(ctx, jobID)
}

type fakeHandler struct {
	err    error
	called int
}

func (f *fakeHandler) Handle(ctx context.Context, msg *job.Message) error {
	f.called++
	return f.err
}

func newTestConsumer(jobs job.Ledger, processor, deleter Handler) *Consumer {
	return NewConsumer(nil, ConsumerConfig{
		QueueURL:   "http://localhost/queue",
		JobTimeout: time.Minute,
	}, jobs, processor, deleter, retry.DefaultPolicy(), zerolog.Nop())
}

const processBody = `{"jobId":"j1","type":"process_file","fileId":"f1","userId":"u1","storageKey":"raw/u1/f1/a.jpg","requestedSizes":[256]}`
const deleteBody = `{"jobId":"j2","type":"delete_file","fileId":"f2","userId":"u1"}`

func TestHandleMessage_Success(t *testing.T) {
	ledger := &fakeJobLedger{}
	processor := &fakeHandler{}
	deleter := &fakeHandler{}
	c := newTestConsumer(ledger, processor, deleter)

	if ack := c.handleMessage(context.Background(), processBody); !ack {
		t.Fatal("handleMessage() = no ack, want ack on success")
	}
	if processor.called != 1 || deleter.called != 0 {
		t.Errorf("processor called %d, deleter %d; want 1, 0", processor.called, deleter.called)
	}
	if len(ledger.statuses) != 1 || ledger.statuses[0] != job.StatusCompleted {
		t.Errorf("statuses = %v, want [COMPLETED]", ledger.statuses)
	}
}

func TestHandleMessage_DispatchesByType(t *testing.T) {
	ledger := &fakeJobLedger{}
	processor := &fakeHandler{}
	deleter := &fakeHandler{}
	c := newTestConsumer(ledger, processor, deleter)

	if ack := c.handleMessage(context.Background(), deleteBody); !ack {
		t.Fatal("handleMessage() = no ack, want ack")
	}
	if deleter.called != 1 || processor.called != 0 {
		t.Errorf("deleter called %d, processor %d; want 1, 0", deleter.called, processor.called)
	}
}

func TestHandleMessage_MalformedIsAcked(t *testing.T) {
	claimCalled := false
	ledger := &fakeJobLedger{
		ClaimFunc: func(ctx context.Context, jobID string, jobType job.Type) (job.ClaimOutcome, error) {
			claimCalled = true
			return job.ClaimGranted, nil
		},
	}
	c := newTestConsumer(ledger, &fakeHandler{}, &fakeHandler{})

	if ack := c.handleMessage(context.Background(), `not json`); !ack {
		t.Fatal("handleMessage() = no ack, want ack to drop poison message")
	}
	if claimCalled {
		t.Error("Claim called for a malformed message")
	}
}

func TestHandleMessage_ClaimErrorLeavesMessage(t *testing.T) {
	ledger := &fakeJobLedger{
		ClaimFunc: func(ctx context.Context, jobID string, jobType job.Type) (job.ClaimOutcome, error) {
			return 0, errors.New("database down")
		},
	}
	c := newTestConsumer(ledger, &fakeHandler{}, &fakeHandler{})

	if ack := c.handleMessage(context.Background(), processBody); ack {
		t.Fatal("handleMessage() = ack, want redelivery when the claim errors")
	}
}

func TestHandleMessage_ClaimDenied(t *testing.T) {
	tests := []struct {
		name    string
		outcome job.ClaimOutcome
		wantAck bool
	}{
		{"terminal job is acked", job.ClaimDeniedTerminal, true},
		{"locked job is left for redelivery", job.ClaimDeniedLocked, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &fakeHandler{}
			ledger := &fakeJobLedger{
				ClaimFunc: func(ctx context.Context, jobID string, jobType job.Type) (job.ClaimOutcome, error) {
					return tt.outcome, nil
				},
			}
			c := newTestConsumer(ledger, processor, &fakeHandler{})

			if ack := c.handleMessage(context.Background(), processBody); ack != tt.wantAck {
				t.Errorf("handleMessage() ack = %v, want %v", ack, tt.wantAck)
			}
			if processor.called != 0 {
				t.Error("handler called despite denied claim")
			}
		})
	}
}

func TestHandleMessage_FailureBelowMaxAttempts(t *testing.T) {
	var recordedKind string
	ledger := &fakeJobLedger{
		RecordFailureFunc: func(ctx context.Context, jobID, message, kind string) error {
			recordedKind = kind
			return nil
		},
	}
	processor := &fakeHandler{err: errors.New("resize failed")}
	c := newTestConsumer(ledger, processor, &fakeHandler{})

	if ack := c.handleMessage(context.Background(), processBody); ack {
		t.Fatal("handleMessage() = ack, want redelivery for a retryable failure")
	}
	if len(ledger.statuses) != 1 || ledger.statuses[0] != job.StatusFailedRetryable {
		t.Errorf("statuses = %v, want [FAILED_RETRYABLE]", ledger.statuses)
	}
	if recordedKind != "handler_error" {
		t.Errorf("recorded error kind = %q, want handler_error", recordedKind)
	}
}

func TestHandleMessage_FailureAtMaxAttempts(t *testing.T) {
	ledger := &fakeJobLedger{
		MaxAttemptsReachedFunc: func(ctx context.Context, jobID string) (bool, error) {
			return true, nil
		},
	}
	processor := &fakeHandler{err: errors.New("still broken")}
	c := newTestConsumer(ledger, processor, &fakeHandler{})

	if ack := c.handleMessage(context.Background(), processBody); !ack {
		t.Fatal("handleMessage() = no ack, want ack once the job is permanently failed")
	}
	if len(ledger.statuses) != 1 || ledger.statuses[0] != job.StatusFailed {
		t.Errorf("statuses = %v, want [FAILED]", ledger.statuses)
	}
}

func TestHandleMessage_TimeoutErrorKind(t *testing.T) {
	var recordedKind string
	ledger := &fakeJobLedger{
		RecordFailureFunc: func(ctx context.Context, jobID, message, kind string) error {
			recordedKind = kind
			return nil
		},
	}
	processor := &fakeHandler{err: context.DeadlineExceeded}
	c := newTestConsumer(ledger, processor, &fakeHandler{})

	c.handleMessage(context.Background(), processBody)
	if recordedKind != "timeout" {
		t.Errorf("recorded error kind = %q, want timeout", recordedKind)
	}
}

func TestDeleteMessage_BoundedDeadline(t *testing.T) {
	var gotDeadline bool
	queue := &fakeQueue{
		DeleteMessageFunc: func(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
			_, gotDeadline = ctx.Deadline()
			return &sqs.DeleteMessageOutput{}, nil
		},
	}
	c := NewConsumer(queue, ConsumerConfig{QueueURL: "http://localhost/queue"},
		&fakeJobLedger{}, &fakeHandler{}, &fakeHandler{}, retry.DefaultPolicy(), zerolog.Nop())

	// The ack runs detached from the shutdown signal; it must still
	// carry its own deadline so a hung call cannot block exit.
	c.deleteMessage(context.WithoutCancel(context.Background()), "receipt-1")
	if !gotDeadline {
		t.Error("deleteMessage() called SQS without a deadline")
	}
}

func TestHandleMessage_CompletionStatusErrorLeavesMessage(t *testing.T) {
	ledger := &fakeJobLedger{
		UpdateStatusFunc: func(ctx context.Context, jobID string, status job.Status) error {
			return errors.New("database down")
		},
	}
	c := newTestConsumer(ledger, &fakeHandler{}, &fakeHandler{})

	if ack := c.handleMessage(context.Background(), processBody); ack {
		t.Fatal("handleMessage() = ack, want redelivery when the completion write fails")
	}
}

package transfer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/akovalev/netchat-server/internal/core"
	"github.com/akovalev/netchat-server/internal/proto"
	"github.com/akovalev/netchat-server/internal/store"
)

// Rejection errors returned synchronously by Submit. A rejected
// request never reaches the backlog.
var (
	ErrBadExtension     = errors.New("file extension not allowed")
	ErrInvalidSize      = errors.New("file size out of bounds")
	ErrUnknownRecipient = errors.New("recipient not found")
	ErrSelfTransfer     = errors.New("cannot send a file to yourself")
	ErrBacklogFull      = errors.New("transfer backlog full")
)

// Config bounds the transfer pipeline.
type Config struct {
	// Workers is the fixed pool size; it also sizes the counting
	// token that bounds in-flight tasks.
	Workers int
	// Backlog caps queued-but-not-dequeued tasks, independent of
	// Workers, so memory stays bounded under burst load.
	Backlog int
	// MaxFileSize is the largest accepted declared size in bytes.
	MaxFileSize uint64
	// AllowedExtensions is the admission allow-list (".txt", ".pdf", ...).
	AllowedExtensions []string
	// ProcessDelay simulates the per-task transfer time.
	ProcessDelay time.Duration
}

// Queue is the bounded FIFO of pending transfers plus its worker pool.
// Validation happens synchronously in Submit; delivery is asynchronous
// and strictly FIFO per recipient.
type Queue struct {
	cfg      Config
	registry *core.Registry
	audit    store.TransferLog // nil disables the audit trail
	log      *zerolog.Logger

	allowed  map[string]struct{}
	tasks    chan *Task
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewQueue builds the pipeline. audit may be nil.
func NewQueue(cfg Config, registry *core.Registry, audit store.TransferLog, logger *zerolog.Logger) *Queue {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &Queue{
		cfg:      cfg,
		registry: registry,
		audit:    audit,
		log:      logger,
		allowed:  allowed,
		tasks:    make(chan *Task, cfg.Backlog),
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Submit validates a transfer request and enqueues it. Every failure
// is synchronous; nothing is queued and then dropped.
func (q *Queue) Submit(filename, sender, recipient string, size uint64) (*Task, error) {
	task := newTask(filename, sender, recipient, size)

	if err := q.validate(task); err != nil {
		return nil, err
	}
	task.setState(StateValidated)

	select {
	case q.tasks <- task:
		task.setState(StateQueued)
	default:
		return nil, ErrBacklogFull
	}

	q.log.Debug().
		Stringer("task_id", task.ID).
		Str("from", sender).
		Str("to", recipient).
		Str("file", filename).
		Int("pending", len(q.tasks)).
		Msg("transfer queued")
	return task, nil
}

func (q *Queue) validate(t *Task) error {
	ext := strings.ToLower(filepath.Ext(t.Filename))
	if _, ok := q.allowed[ext]; !ok {
		return ErrBadExtension
	}
	if t.Size == 0 || t.Size > q.cfg.MaxFileSize {
		return ErrInvalidSize
	}
	if t.Sender == t.Recipient {
		return ErrSelfTransfer
	}
	if _, err := q.registry.Lookup(t.Recipient); err != nil {
		return ErrUnknownRecipient
	}
	return nil
}

// Run starts the worker pool and blocks until ctx is cancelled and
// every worker has drained out.
func (q *Queue) Run(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Wait()
}

// Pending returns the backlog depth.
func (q *Queue) Pending() int { return len(q.tasks) }

// InFlight returns how many tasks workers are processing right now.
func (q *Queue) InFlight() int { return int(q.inFlight.Load()) }

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		// The token bounds concurrent processing; Acquire observes
		// cancellation directly instead of polling a shutdown flag.
		if err := q.sem.Acquire(ctx, 1); err != nil {
			return
		}

		select {
		case task := <-q.tasks:
			task.setState(StateDequeued)
			q.process(ctx, id, task)
			q.sem.Release(1)
		case <-ctx.Done():
			q.sem.Release(1)
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, workerID int, task *Task) {
	task.setState(StateProcessing)
	q.inFlight.Add(1)
	defer q.inFlight.Add(-1)

	// Simulated transfer time; stands in for moving real bytes.
	if q.cfg.ProcessDelay > 0 {
		timer := time.NewTimer(q.cfg.ProcessDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			q.finish(task, StateFailed, task.Filename, "shutdown before delivery")
			return
		}
	}

	recipient, err := q.registry.Lookup(task.Recipient)
	if err != nil {
		q.log.Warn().
			Stringer("task_id", task.ID).
			Str("to", task.Recipient).
			Msg("recipient disconnected before delivery")
		q.finish(task, StateFailed, task.Filename, "recipient offline")
		return
	}

	final, renamed := recipient.ClaimFilename(task.Filename)
	if renamed {
		q.log.Info().
			Stringer("task_id", task.ID).
			Str("from", task.Filename).
			Str("to", final).
			Msg("renamed colliding file")
	}

	err = recipient.Send(&proto.Envelope{
		Kind:     proto.KindFileTransferData,
		Sender:   task.Sender,
		Receiver: task.Recipient,
		Filename: final,
		FileSize: task.Size,
		Content:  task.Sender + " sent you a file",
	})
	if err != nil {
		q.log.Warn().
			Stringer("task_id", task.ID).
			Err(err).
			Msg("delivery write failed")
		q.finish(task, StateFailed, final, "write failed")
		return
	}

	q.log.Info().
		Stringer("task_id", task.ID).
		Int("worker", workerID).
		Str("file", final).
		Str("to", task.Recipient).
		Msg("transfer delivered")
	q.finish(task, StateDelivered, final, "")
}

func (q *Queue) finish(task *Task, state State, finalName, reason string) {
	task.setState(state)
	if q.audit == nil {
		return
	}

	outcome := store.TransferOutcomeDelivered
	if state == StateFailed {
		outcome = store.TransferOutcomeFailed
	}
	rec := &store.TransferRecord{
		TaskID:        task.ID.String(),
		Sender:        task.Sender,
		Recipient:     task.Recipient,
		Filename:      task.Filename,
		FinalFilename: finalName,
		Size:          task.Size,
		Outcome:       outcome,
		Reason:        reason,
		EnqueuedAt:    task.EnqueuedAt,
		FinishedAt:    time.Now(),
	}
	// Audit writes must survive shutdown cancellation.
	if err := q.audit.RecordTransfer(context.Background(), rec); err != nil {
		q.log.Warn().Err(err).Stringer("task_id", task.ID).Msg("failed to record transfer")
	}
}

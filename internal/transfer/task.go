package transfer

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State tracks a task through the pipeline.
type State int

const (
	// StateSubmitted is the initial state before validation.
	StateSubmitted State = iota
	// StateValidated means the request passed all admission checks.
	StateValidated
	// StateQueued means the task sits in the backlog.
	StateQueued
	// StateDequeued means a worker has picked the task up.
	StateDequeued
	// StateProcessing means the simulated transfer is running.
	StateProcessing
	// StateDelivered is terminal success.
	StateDelivered
	// StateFailed is terminal failure; tasks are never retried.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StateValidated:
		return "validated"
	case StateQueued:
		return "queued"
	case StateDequeued:
		return "dequeued"
	case StateProcessing:
		return "processing"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is one pending simulated file delivery. The identifying fields
// are immutable after submission; only the state advances. The state
// is atomic so submitters can observe progress while a worker owns
// the task.
type Task struct {
	ID         uuid.UUID
	Filename   string
	Sender     string
	Recipient  string
	Size       uint64
	EnqueuedAt time.Time

	state atomic.Int32
}

// State returns the task's current pipeline state.
func (t *Task) State() State { return State(t.state.Load()) }

func (t *Task) setState(s State) { t.state.Store(int32(s)) }

func newTask(filename, sender, recipient string, size uint64) *Task {
	t := &Task{
		ID:         uuid.New(),
		Filename:   filename,
		Sender:     sender,
		Recipient:  recipient,
		Size:       size,
		EnqueuedAt: time.Now(),
	}
	t.setState(StateSubmitted)
	return t
}

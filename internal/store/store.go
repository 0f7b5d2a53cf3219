package store

import (
	"context"
	"time"
)

// TransferOutcome is the terminal state of an audited transfer.
type TransferOutcome string

const (
	TransferOutcomeDelivered TransferOutcome = "delivered"
	TransferOutcomeFailed    TransferOutcome = "failed"
)

// TransferRecord is one audited file-transfer task.
type TransferRecord struct {
	ID            int64
	TaskID        string
	Sender        string
	Recipient     string
	Filename      string
	FinalFilename string
	Size          uint64
	Outcome       TransferOutcome
	Reason        string // empty on success
	EnqueuedAt    time.Time
	FinishedAt    time.Time
}

// TransferLog persists the audit trail of the transfer pipeline.
type TransferLog interface {
	RecordTransfer(ctx context.Context, rec *TransferRecord) error
	RecentTransfers(ctx context.Context, limit int) ([]TransferRecord, error)
}

// Store combines all persistence interfaces.
type Store interface {
	TransferLog

	Close() error
}

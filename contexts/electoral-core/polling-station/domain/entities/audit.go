package entities

import "time"

// AuditEntry is one append-only line of the ballot audit trail, derived from
// outbox events.
type AuditEntry struct {
	EntryID    string
	EventID    string
	EventType  string
	BallotID   string
	ReceiptID  string
	CircuitID  int64
	Detail     []byte
	OccurredAt time.Time
	RecordedAt time.Time
}

package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ValidationState string

const (
	ValidationPending  ValidationState = "pending"
	ValidationApproved ValidationState = "approved"
	ValidationRejected ValidationState = "rejected"
)

// Candidate selector values accepted by the casting engine. Positive values
// reference a head candidate of the active election.
const (
	SelectorBlank     int64 = 0
	SelectorNullified int64 = -1
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision normalizes an adjudication decision. The Spanish aliases are
// what polling-station clients historically send.
func ParseDecision(raw string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "approved", "validar":
		return DecisionApprove, true
	case "reject", "rejected", "rechazar":
		return DecisionReject, true
	default:
		return "", false
	}
}

func (d Decision) TargetState() ValidationState {
	if d == DecisionApprove {
		return ValidationApproved
	}
	return ValidationRejected
}

// Ballot is append-only: after creation only ValidationState (and the
// resolution audit fields) may change. It never carries the credential.
type Ballot struct {
	BallotID        string
	ReceiptID       string
	Sequence        int
	CircuitID       int64
	ElectionID      int64
	CandidateID     *int64
	CastAt          time.Time
	Observed        bool
	ValidationState ValidationState
	Nullified       bool
	ResolvedBy      string
	ResolvedAt      *time.Time
}

func (b Ballot) IsBlank() bool {
	return b.CandidateID == nil && !b.Nullified
}

func (b Ballot) IsValidVote() bool {
	return b.CandidateID != nil && !b.Nullified
}

func (b Ballot) Counts() bool {
	return b.ValidationState == ValidationApproved
}

// ClassifySelector maps a selector onto the stored ballot shape.
func ClassifySelector(selector int64) (candidateID *int64, nullified bool) {
	switch {
	case selector == SelectorNullified:
		return nil, true
	case selector == SelectorBlank:
		return nil, false
	default:
		id := selector
		return &id, false
	}
}

// FormatReceipt renders the circuit-scoped receipt identifier.
func FormatReceipt(circuitID int64, sequence int) string {
	return fmt.Sprintf("C%03d-%05d", circuitID, sequence)
}

// ParseReceipt extracts circuit id and sequence from a receipt identifier.
func ParseReceipt(receipt string) (int64, int, bool) {
	value := strings.TrimSpace(receipt)
	if !strings.HasPrefix(value, "C") {
		return 0, 0, false
	}
	circuitRaw, sequenceRaw, found := strings.Cut(value[1:], "-")
	if !found {
		return 0, 0, false
	}
	circuitID, err := strconv.ParseInt(circuitRaw, 10, 64)
	if err != nil || circuitID <= 0 {
		return 0, 0, false
	}
	sequence, err := strconv.Atoi(sequenceRaw)
	if err != nil || sequence <= 0 {
		return 0, 0, false
	}
	return circuitID, sequence, true
}

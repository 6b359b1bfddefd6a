package errors

import (
	"errors"
	"fmt"

	"urna/contexts/electoral-core/polling-station/domain/entities"
)

var (
	ErrInvalidCredential       = errors.New("credential is required")
	ErrInvalidRegistryEntry    = errors.New("invalid credential registry entry")
	ErrCircuitNotFound         = errors.New("circuit not found")
	ErrAlreadyAuthorized       = errors.New("credential is already authorized")
	ErrNotRegisteredForCircuit = errors.New("credential is not registered for this circuit")
	ErrNotAuthorized           = errors.New("credential is not authorized to vote")
	ErrAlreadyVoted            = errors.New("credential has already voted")
	ErrInvalidCandidate        = errors.New("invalid candidate selector")
	ErrNoActiveElection        = errors.New("no active election")
	ErrInvalidElection         = errors.New("invalid election setup")
	ErrInvalidDecision         = errors.New("invalid adjudication decision")
	ErrAdjudicationNotFound    = errors.New("observed ballot not found")
	ErrAlreadyResolved         = errors.New("observed ballot is already resolved")
	ErrConflict                = errors.New("polling station conflict")
	ErrTransient               = errors.New("transient storage failure")
)

// NotRegisteredError reports a non-special authorization attempt for a
// credential that the registry does not pair with the requested circuit.
// HomeCircuit is set when the registry knows where the credential belongs.
type NotRegisteredError struct {
	Credential  string
	HomeCircuit *entities.CircuitRef
}

func (e *NotRegisteredError) Error() string {
	if e.HomeCircuit == nil {
		return ErrNotRegisteredForCircuit.Error()
	}
	return fmt.Sprintf("%s (belongs to circuit %s)", ErrNotRegisteredForCircuit.Error(), e.HomeCircuit.Number)
}

func (e *NotRegisteredError) Unwrap() error {
	return ErrNotRegisteredForCircuit
}

// IsRetryable reports whether err is a transient storage condition the caller
// may retry. Business errors reflect durable state and are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator issues ballot, outbox and audit identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

package workers

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"urna/contexts/electoral-core/polling-station/ports"
)

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func nowFrom(clock ports.Clock) time.Time {
	now := time.Now().UTC()
	if clock != nil {
		now = clock.Now().UTC()
	}
	return now
}

package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestReasonLabels(t *testing.T) {
	require.Equal(t, "ok", Reason(nil))
	require.Equal(t, "already_voted", Reason(fmt.Errorf("%w: %w", domainerrors.ErrAlreadyAuthorized, domainerrors.ErrAlreadyVoted)))
	require.Equal(t, "not_registered", Reason(&domainerrors.NotRegisteredError{Credential: "AAA111"}))
	require.Equal(t, "transient", Reason(fmt.Errorf("lock: %w", domainerrors.ErrTransient)))
	require.Equal(t, "error", Reason(errors.New("boom")))
}

func TestObserveCastSplitsSuccessAndFailure(t *testing.T) {
	m := NewPrometheus()
	m.ObserveCast(false, nil, 10*time.Millisecond)
	m.ObserveCast(true, nil, 12*time.Millisecond)
	m.ObserveCast(false, domainerrors.ErrNotAuthorized, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.casts.WithLabelValues("false")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.casts.WithLabelValues("true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.castFailures.WithLabelValues("not_authorized")))
}

func TestObserveResolutionAndRelay(t *testing.T) {
	m := NewPrometheus()
	m.ObserveResolution("approve", nil)
	m.ObserveResolution("approve", domainerrors.ErrAlreadyResolved)
	m.ObserveRelayed(3)
	m.ObserveRelayed(0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("approve", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("approve", "already_resolved")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.relayedMessages))
}

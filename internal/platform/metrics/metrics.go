package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "urna"

// Prometheus records polling-station outcomes. Each instance owns its
// registry so tests and processes never collide on the global one.
type Prometheus struct {
	registry        *prometheus.Registry
	authorizations  *prometheus.CounterVec
	casts           *prometheus.CounterVec
	castFailures    *prometheus.CounterVec
	castLatency     prometheus.Histogram
	resolutions     *prometheus.CounterVec
	relayedMessages prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Prometheus{
		registry: registry,
		authorizations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorizations_total",
			Help:      "Voter authorization attempts by kind and outcome",
		}, []string{"special", "outcome"}),
		casts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ballots_cast_total",
			Help:      "Ballots committed by kind",
		}, []string{"observed"}),
		castFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ballot_cast_failures_total",
			Help:      "Rejected cast attempts by reason",
		}, []string{"reason"}),
		castLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ballot_cast_duration_seconds",
			Help:      "Latency of the casting transaction",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 3, 5},
		}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observed_resolutions_total",
			Help:      "Observed ballot adjudications by decision and outcome",
		}, []string{"decision", "outcome"}),
		relayedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relayed_total",
			Help:      "Outbox messages published to the event bus",
		}),
	}
}

func (p *Prometheus) ObserveAuthorization(special bool, err error) {
	p.authorizations.WithLabelValues(strconv.FormatBool(special), Reason(err)).Inc()
}

func (p *Prometheus) ObserveCast(observed bool, err error, elapsed time.Duration) {
	p.castLatency.Observe(elapsed.Seconds())
	if err != nil {
		p.castFailures.WithLabelValues(Reason(err)).Inc()
		return
	}
	p.casts.WithLabelValues(strconv.FormatBool(observed)).Inc()
}

func (p *Prometheus) ObserveResolution(decision string, err error) {
	p.resolutions.WithLabelValues(decision, Reason(err)).Inc()
}

func (p *Prometheus) ObserveRelayed(count int) {
	if count > 0 {
		p.relayedMessages.Add(float64(count))
	}
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Reason maps an operation error to a bounded label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, domainerrors.ErrAlreadyAuthorized):
		return "already_authorized"
	case errors.Is(err, domainerrors.ErrNotRegisteredForCircuit):
		return "not_registered"
	case errors.Is(err, domainerrors.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, domainerrors.ErrInvalidCandidate):
		return "invalid_candidate"
	case errors.Is(err, domainerrors.ErrNoActiveElection):
		return "no_active_election"
	case errors.Is(err, domainerrors.ErrCircuitNotFound):
		return "circuit_not_found"
	case errors.Is(err, domainerrors.ErrInvalidDecision):
		return "invalid_decision"
	case errors.Is(err, domainerrors.ErrAdjudicationNotFound):
		return "not_found"
	case errors.Is(err, domainerrors.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, domainerrors.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, domainerrors.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

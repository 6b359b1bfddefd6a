package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	pollingstation "urna/contexts/electoral-core/polling-station"
	httpadapter "urna/contexts/electoral-core/polling-station/adapters/http"
	domainerrors "urna/contexts/electoral-core/polling-station/domain/errors"
	httptransport "urna/contexts/electoral-core/polling-station/transport/http"

	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	_ "urna/internal/platform/httpserver/docs"
)

const (
	headerUserID        = "X-User-Id"
	headerCircuitNumber = "X-Circuit-Number"
)

type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server
	logger  *slog.Logger
	addr    string
	polling pollingstation.Module
	metrics http.Handler
}

// New wires the polling-station routes. metricsHandler may be nil, in which
// case /metrics is not served.
func New(
	polling pollingstation.Module,
	metricsHandler http.Handler,
	allowedOrigins []string,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		polling: polling,
		metrics: metricsHandler,
	}
	s.registerRoutes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", headerUserID, headerCircuitNumber},
		MaxAge:         300,
	}).Handler(s.mux)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	s.mux.HandleFunc("POST /api/v1/voters/authorize", s.handleAuthorizeVoter)
	s.mux.HandleFunc("GET /api/v1/voters/{credential}", s.handleVoterStatus)
	s.mux.HandleFunc("GET /api/v1/circuits/search", s.handleSearchCircuits)
	s.mux.HandleFunc("GET /api/v1/circuits/{circuit_number}/voters", s.handleCircuitVoters)
	s.mux.HandleFunc("GET /api/v1/circuits/{circuit_number}/registry", s.handleCircuitRegistry)
	s.mux.HandleFunc("GET /api/v1/circuits/{circuit_number}/observed", s.handleObservedBallots)

	s.mux.HandleFunc("POST /api/v1/ballots", s.handleCastBallot)
	s.mux.HandleFunc("POST /api/v1/ballots/{ballot_id}/resolution", s.handleResolveBallot)

	s.mux.HandleFunc("GET /api/v1/results", s.handleResults)
	s.mux.HandleFunc("GET /api/v1/results/departments", s.handleDepartments)
	s.mux.HandleFunc("GET /api/v1/results/circuits/{circuit_number}", s.handleCircuitResults)
	s.mux.HandleFunc("GET /api/v1/elections/active", s.handleActiveElection)
	s.mux.HandleFunc("GET /api/v1/candidates", s.handleCandidates)

	s.mux.HandleFunc("POST /api/v1/admin/registry", s.handleImportRegistry)
	s.mux.HandleFunc("POST /api/v1/admin/elections", s.handleOpenElection)
}

func (s *Server) handleAuthorizeVoter(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req httptransport.AuthorizeVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polling.Handler.AuthorizeVoterHandler(r.Context(), actorID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleVoterStatus(w http.ResponseWriter, r *http.Request) {
	resp, found, err := s.polling.Handler.VoterStatusHandler(r.Context(), r.PathValue("credential"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "voter_not_authorized", "credential has no authorization record")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCircuitVoters(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polling.Handler.CircuitVotersHandler(r.Context(), r.PathValue("circuit_number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCircuitRegistry(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polling.Handler.CircuitRegistryHandler(r.Context(), r.PathValue("circuit_number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleObservedBallots(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polling.Handler.ObservedBallotsHandler(r.Context(), r.PathValue("circuit_number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	circuitNumber := strings.TrimSpace(r.Header.Get(headerCircuitNumber))
	if circuitNumber == "" {
		writeError(w, http.StatusBadRequest, "missing_circuit", headerCircuitNumber+" header is required")
		return
	}
	var req httptransport.CastBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polling.Handler.CastBallotHandler(r.Context(), circuitNumber, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleResolveBallot(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req httptransport.ResolveBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polling.Handler.ResolveBallotHandler(r.Context(), actorID, r.PathValue("ballot_id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var electionID int64
	if raw := query.Get("election_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_election_id", "election_id must be a positive integer")
			return
		}
		electionID = parsed
	}
	resp, err := s.polling.Handler.ResultsHandler(r.Context(), electionID, query.Get("department"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polling.Handler.DepartmentsHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCircuitResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polling.Handler.CircuitResultsHandler(r.Context(), r.PathValue("circuit_number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchCircuits(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("q") {
		writeError(w, http.StatusBadRequest, "missing_query", "q is required")
		return
	}
	resp, err := s.polling.Handler.SearchCircuitsHandler(r.Context(), query.Get("q"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polling.Handler.CandidatesHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActiveElection(w http.ResponseWriter, r *http.Request) {
	resp, found, err := s.polling.Handler.ActiveElectionHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no_active_election", domainerrors.ErrNoActiveElection.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImportRegistry(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req httptransport.RegistryImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polling.Handler.ImportRegistryHandler(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenElection(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req httptransport.OpenElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.polling.Handler.OpenElectionHandler(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", headerUserID+" header is required")
		return "", false
	}
	return userID, true
}

func writeDomainError(w http.ResponseWriter, err error) {
	var notRegistered *domainerrors.NotRegisteredError
	switch {
	case errors.As(err, &notRegistered):
		resp := httptransport.ErrorResponse{
			Code:    "not_registered_for_circuit",
			Message: err.Error(),
		}
		if notRegistered.HomeCircuit != nil {
			home := httpadapter.MapCircuitRef(*notRegistered.HomeCircuit)
			resp.HomeCircuit = &home
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, domainerrors.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, domainerrors.ErrAlreadyAuthorized):
		writeError(w, http.StatusConflict, "already_authorized", err.Error())
	case errors.Is(err, domainerrors.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "already_resolved", err.Error())
	case errors.Is(err, domainerrors.ErrNoActiveElection):
		writeError(w, http.StatusConflict, "no_active_election", err.Error())
	case errors.Is(err, domainerrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domainerrors.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidCandidate):
		writeError(w, http.StatusBadRequest, "invalid_candidate", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, "invalid_decision", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidCredential),
		errors.Is(err, domainerrors.ErrInvalidRegistryEntry),
		errors.Is(err, domainerrors.ErrInvalidElection):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domainerrors.ErrCircuitNotFound):
		writeError(w, http.StatusNotFound, "circuit_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrAdjudicationNotFound):
		writeError(w, http.StatusNotFound, "observed_ballot_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "transient_failure", "storage is busy, retry the request")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, httptransport.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pbinitiative/spaceflake/internal/config"
	"github.com/pbinitiative/spaceflake/internal/generator"
	"github.com/pbinitiative/spaceflake/internal/log"
	apierror "github.com/pbinitiative/spaceflake/internal/rest/error"
	"github.com/pbinitiative/spaceflake/internal/rest/middleware"
	"github.com/pbinitiative/spaceflake/pkg/spaceflake"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds request bodies, every request body is a small JSON object.
const maxBodySize = 1 << 16

type Server struct {
	gen    *generator.Service
	addr   string
	server *http.Server
}

type GenerateRequest struct {
	WorkerId *uint64 `json:"workerId,omitempty"`
	At       uint64  `json:"at,omitempty"`
}

type BulkGenerateRequest struct {
	Amount   int     `json:"amount"`
	WorkerId *uint64 `json:"workerId,omitempty"`
}

type Spaceflake struct {
	Id        string            `json:"id"`
	Base58    string            `json:"base58"`
	BaseEpoch uint64            `json:"baseEpoch"`
	Time      uint64            `json:"time"`
	NodeId    uint64            `json:"nodeId"`
	WorkerId  uint64            `json:"workerId"`
	Sequence  uint64            `json:"sequence"`
	Binary    map[string]string `json:"binary,omitempty"`
}

type BulkGenerateResponse struct {
	Count int      `json:"count"`
	Ids   []string `json:"ids"`
}

func NewServer(gen *generator.Service, conf config.Config) *Server {
	s := Server{
		gen:  gen,
		addr: conf.HttpServer.Addr,
	}
	s.server = &http.Server{
		ReadHeaderTimeout: 3 * time.Second,
		Handler:           s.routes(conf),
		Addr:              conf.HttpServer.Addr,
	}
	return &s
}

// Handler is the routed API, middleware included.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes(conf config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Cors())
	r.Use(middleware.RequestID())
	r.Use(middleware.Opentelemetry(conf.Tracing.Name))

	api := chi.NewRouter()
	api.Route("/v1", func(r chi.Router) {
		r.Post("/spaceflakes", s.generate)
		r.Post("/spaceflakes/bulk", s.bulkGenerate)
		r.With(middleware.StripEmptyQueryParams()).Get("/spaceflakes/{id}", s.decompose)
	})
	// register system endpoints
	api.Route("/system", func(r chi.Router) {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.gen.Status())
		})
	})

	prefix := strings.TrimSuffix(conf.HttpServer.Context, "/")
	if prefix == "" {
		prefix = "/"
	}
	r.Mount(prefix, api)
	return r
}

func (s *Server) Start() net.Listener {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		log.Error("failed to listen: %v", err)
		return nil
	}
	log.Info("Spaceflake REST server listening on %s", listener.Addr())
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("Error starting server: %s", err)
		}
	}()
	return listener
}

func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Error("Error stopping server: %s", err)
	}
}

// generate serves POST /v1/spaceflakes. An explicit "at" older than the last spaceflake
// of the selected worker is a 400, the worker cannot stamp an id in its past.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := readJSON(r, &req, true); err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	sf, err := s.gen.Generate(r.Context(), generator.GenerateRequest{WorkerID: req.WorkerId, At: req.At})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSpaceflake(sf, false))
}

func (s *Server) bulkGenerate(w http.ResponseWriter, r *http.Request) {
	var req BulkGenerateRequest
	if err := readJSON(r, &req, false); err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	spaceflakes, err := s.gen.BulkGenerate(r.Context(), req.Amount, req.WorkerId)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	ids := make([]string, len(spaceflakes))
	for i, sf := range spaceflakes {
		ids[i] = sf.String()
	}
	log.Debugf(r.Context(), "generated %d spaceflakes in bulk", len(ids))
	writeJSON(w, http.StatusCreated, BulkGenerateResponse{Count: len(ids), Ids: ids})
}

func (s *Server) decompose(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var baseEpoch uint64
	if v := query.Get("baseEpoch"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: fmt.Sprintf("invalid baseEpoch %q", v), Type: apierror.TypeBadRequest})
			return
		}
		baseEpoch = parsed
	}

	raw := chi.URLParam(r, "id")
	var (
		id  uint64
		err error
	)
	switch encoding := query.Get("encoding"); encoding {
	case "", "decimal":
		id, err = strconv.ParseUint(raw, 10, 64)
	case "base58":
		var sf spaceflake.Spaceflake
		sf, err = spaceflake.ParseBase58(raw, baseEpoch)
		id = sf.ID()
	default:
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: fmt.Sprintf("unknown encoding %q", encoding), Type: apierror.TypeBadRequest})
		return
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: fmt.Sprintf("invalid spaceflake %q: %s", raw, err), Type: apierror.TypeBadRequest})
		return
	}

	sf, err := s.gen.Decompose(r.Context(), id, baseEpoch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	binary, _ := strconv.ParseBool(query.Get("binary"))
	writeJSON(w, http.StatusOK, toSpaceflake(sf, binary))
}

func toSpaceflake(sf spaceflake.Spaceflake, binary bool) Spaceflake {
	out := Spaceflake{
		Id:        sf.String(),
		Base58:    sf.Base58(),
		BaseEpoch: sf.BaseEpoch(),
		Time:      sf.Time(),
		NodeId:    sf.NodeID(),
		WorkerId:  sf.WorkerID(),
		Sequence:  sf.Sequence(),
	}
	if binary {
		out.Binary = sf.DecomposeBinary()
	}
	return out
}

// readJSON decodes the request body into v. An empty body is accepted when optional.
func readJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		if optional {
			return nil
		}
		return errors.New("request body is required")
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		configErr   *spaceflake.ConfigurationError
		orderingErr *spaceflake.TemporalOrderingError
	)
	switch {
	case errors.As(err, &configErr), errors.As(err, &orderingErr),
		errors.Is(err, spaceflake.ErrReservedBit), errors.Is(err, generator.ErrBulkAmount),
		errors.Is(err, generator.ErrStaleTarget):
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
	case errors.Is(err, spaceflake.ErrClockDrift), errors.Is(err, spaceflake.ErrSequenceExhausted):
		log.Warnf(r.Context(), "spaceflake generation unavailable: %s", err)
		writeError(w, r, http.StatusServiceUnavailable, apierror.ApiError{Message: err.Error(), Type: apierror.TypeUnavailable})
	default:
		log.Errorf(r.Context(), "spaceflake request failed: %s", err)
		writeError(w, r, http.StatusInternalServerError, apierror.ApiError{Message: err.Error(), Type: apierror.TypeError})
	}
}

func writeJSON(w http.ResponseWriter, status int, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		log.Error("Server error: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp apierror.ApiError) {
	log.Debugf(r.Context(), "%s %s: %d %s", r.Method, r.URL.Path, status, resp.Message)
	writeJSON(w, status, resp)
}

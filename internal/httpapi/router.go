// Package httpapi exposes a Registry over plain HTTP/JSON, grounded on the
// original source's single Rocket route `#[get("/<market>/<symbol>/<channel>")]`
// plus the pack's method-switch-handler, writeJSON-helper idiom (see
// Scarage1-FlashDB's internal/web package) — rebuilt on gorilla/mux for the
// path-parameter routing the original's dynamic segments call for.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Priyanshu23/flashseries/internal/registry"
	"github.com/Priyanshu23/flashseries/store"
)

// Server wraps a Registry with the routes and JSON envelopes external
// clients talk to.
type Server struct {
	reg *registry.Registry
	log *zap.SugaredLogger
}

// New builds a Server over reg. log may be nil, in which case a no-op
// logger is used.
func New(reg *registry.Registry, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{reg: reg, log: log}
}

// Router builds the gorilla/mux router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/{market}/{symbol}/{channel}/range", s.handleRange).Methods(http.MethodGet)
	r.HandleFunc("/{market}/{symbol}/{channel}/pool", s.handlePool).Methods(http.MethodGet)
	r.HandleFunc("/{market}/{symbol}/{channel}", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/{market}/{symbol}/{channel}", s.handleStore).Methods(http.MethodPost)
	return r
}

type valueResponse struct {
	Key   store.Timestamp `json:"key"`
	Value int64           `json:"value"`
}

type rangeResponse struct {
	Records []valueResponse `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps a registry/store error to an HTTP status the way the
// original's Rocket responders mapped NotFound to 404 and everything else
// to 400/500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) channelFor(w http.ResponseWriter, r *http.Request) (*registry.Channel, bool) {
	vars := mux.Vars(r)
	ch, ok := s.reg.Get(vars["market"], vars["symbol"], vars["channel"])
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("channel not found"))
		return nil, false
	}
	return ch, true
}

// handleLatest mirrors the original test_client_hello_world: the most
// recent record, found by retrieving backward from the maximum
// representable timestamp (or from ?as_of= when given).
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channelFor(w, r)
	if !ok {
		return
	}

	rec, err := ch.RetrieveNearest(store.Timestamp(maxTimestampQuery(r)), store.Backward)
	if err != nil {
		s.log.Debugw("latest lookup failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, valueResponse{Key: rec.Key, Value: rec.Value})
}

// maxTimestampQuery lets callers pin "latest as of" via ?as_of=, defaulting
// to the largest timestamp the on-disk encoding can represent.
func maxTimestampQuery(r *http.Request) uint64 {
	const maxRepresentableTimestamp = 1e13 - 1
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return v
		}
	}
	return maxRepresentableTimestamp
}

func parseTimestampQuery(r *http.Request, name string) (store.Timestamp, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New(name + " is required")
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be an unsigned integer")
	}
	return store.Timestamp(v), nil
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channelFor(w, r)
	if !ok {
		return
	}

	from, err := parseTimestampQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTimestampQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	recs, err := ch.RetrieveRange(from, to)
	if err != nil {
		s.log.Debugw("range query failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse{Records: toValueResponses(recs)})
}

var poolingMethodNames = map[string]store.PoolingMethod{
	"end":   store.End,
	"high":  store.High,
	"low":   store.Low,
	"mean":  store.Mean,
	"start": store.Start,
	"sum":   store.Sum,
}

var gapFillMethodNames = map[string]store.GapFillMethod{
	"none":     store.GapFillNone,
	"default":  store.GapFillDefault,
	"previous": store.GapFillPrevious,
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channelFor(w, r)
	if !ok {
		return
	}

	from, err := parseTimestampQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTimestampQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	interval, err := strconv.ParseUint(r.URL.Query().Get("interval"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("interval must be an unsigned integer"))
		return
	}

	pooling, ok := poolingMethodNames[r.URL.Query().Get("pooling")]
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("pooling must be one of end, high, low, mean, start, sum"))
		return
	}
	gapFill, ok := gapFillMethodNames[r.URL.Query().Get("gap_fill")]
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("gap_fill must be one of none, default, previous"))
		return
	}

	recs, err := ch.PoolRange(from, to, store.PoolingOptions{
		Interval: interval,
		Pooling:  pooling,
		GapFill:  gapFill,
	})
	if err != nil {
		s.log.Debugw("pool query failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse{Records: toValueResponses(recs)})
}

type storeRequest struct {
	Key   store.Timestamp `json:"key"`
	Value int64           `json:"value"`
}

var channelKindNames = map[string]registry.ChannelKind{
	"btc": registry.ChannelBtc,
	"usd": registry.ChannelUsd,
}

// handleStore writes a new record, creating the channel on first use.
// A new channel's kind is picked by ?kind=btc|usd (default btc); an
// existing channel's kind always wins and a mismatched ?kind= is rejected
// by Registry.GetOrCreate.
func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	kindName := r.URL.Query().Get("kind")
	if kindName == "" {
		kindName = "btc"
	}
	kind, ok := channelKindNames[kindName]
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("kind must be one of btc, usd"))
		return
	}

	ch, err := s.reg.GetOrCreate(vars["market"], vars["symbol"], vars["channel"], kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	if err := ch.Store(req.Key, req.Value); err != nil {
		s.log.Debugw("store failed", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, valueResponse{Key: req.Key, Value: req.Value})
}

func toValueResponses(recs []registry.Record) []valueResponse {
	out := make([]valueResponse, len(recs))
	for i, rec := range recs {
		out[i] = valueResponse{Key: rec.Key, Value: rec.Value}
	}
	return out
}

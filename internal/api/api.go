// Package api exposes a read-only HTTP view over the five result tables and
// the timetable (spec.md §6 "Database façade (consumed)"), adapted from the
// teacher's net/http + PathValue routing style (ndrandal/feed-simulator's
// internal/api/{api,handlers}.go), generalized from per-symbol endpoints to
// per-market-instance endpoints over cleared/uncleared/transactions rows.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/store"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// Reader is the subset of *store.Store the API depends on, narrowed so
// handlers can be tested against a stub instead of a live MongoDB.
type Reader interface {
	ListMarkets(ctx context.Context) ([]store.MarketRef, error)
	ListTimetable(ctx context.Context, r store.Range) ([]timetable.Row, error)
	ListClearedBids(ctx context.Context, r store.Range) ([]clearing.ClearedBid, error)
	ListClearedOffers(ctx context.Context, r store.Range) ([]clearing.ClearedOffer, error)
	ListTransactions(ctx context.Context, r store.Range, txType clearing.TransactionType) ([]clearing.Transaction, error)
	QueryClearedVolume(ctx context.Context, region, market, name, interval string, limit int) ([]store.ClearedVolumeBucket, error)
	CountMarkets(ctx context.Context) (int, error)
	CountTransactions(ctx context.Context) (int64, error)
}

// LiveFeed reports how many clients are subscribed to the live websocket
// feed (internal/feed), for the stats endpoint.
type LiveFeed interface {
	ClientCount() int
}

// Server provides the read-only REST API endpoints over the engine's tables.
type Server struct {
	reader  Reader
	feed    LiveFeed
	startAt time.Time
}

// NewServer creates a new API server.
func NewServer(reader Reader, feed LiveFeed) *Server {
	return &Server{reader: reader, feed: feed, startAt: time.Now()}
}

// Register attaches API routes to the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/markets", s.handleMarkets)
	mux.HandleFunc("GET /api/markets/{region}/{market}/{name}/timetable", s.handleTimetable)
	mux.HandleFunc("GET /api/markets/{region}/{market}/{name}/cleared-bids", s.handleClearedBids)
	mux.HandleFunc("GET /api/markets/{region}/{market}/{name}/cleared-offers", s.handleClearedOffers)
	mux.HandleFunc("GET /api/markets/{region}/{market}/{name}/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/markets/{region}/{market}/{name}/volume", s.handleVolume)
	mux.HandleFunc("GET /api/stats", s.handleStats)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// parseTimeParam parses an RFC3339 query parameter.
func parseTimeParam(r *http.Request, key string) *time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

// rangeFromPath builds a store.Range from the {region,market,name} path
// values plus the common from/to/limit query parameters.
func rangeFromPath(r *http.Request) store.Range {
	return store.Range{
		Region: r.PathValue("region"),
		Market: r.PathValue("market"),
		Name:   r.PathValue("name"),
		From:   parseTimeParam(r, "from"),
		To:     parseTimeParam(r, "to"),
		Limit:  parseIntParam(r, "limit", 100),
	}
}

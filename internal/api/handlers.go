package api

import (
	"context"
	"net/http"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
)

func timeoutCtx(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

// handleMarkets returns the distinct market instances known to the engine.
func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r, 5*time.Second)
	defer cancel()

	markets, err := s.reader.ListMarkets(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

// handleTimetable returns the built timetable rows for one market instance.
func (s *Server) handleTimetable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r, 5*time.Second)
	defer cancel()

	rows, err := s.reader.ListTimetable(ctx, rangeFromPath(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleClearedBids returns cleared-bid rows for one market instance.
func (s *Server) handleClearedBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r, 5*time.Second)
	defer cancel()

	rows, err := s.reader.ListClearedBids(ctx, rangeFromPath(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleClearedOffers returns cleared-offer rows for one market instance.
func (s *Server) handleClearedOffers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r, 5*time.Second)
	defer cancel()

	rows, err := s.reader.ListClearedOffers(ctx, rangeFromPath(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleTransactions returns transaction rows for one market instance,
// optionally narrowed to a type_transaction (spec §3: market/retail/
// balancing/grid/levies).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r, 5*time.Second)
	defer cancel()

	txType := clearing.TransactionType(r.URL.Query().Get("type"))
	rows, err := s.reader.ListTransactions(ctx, rangeFromPath(r), txType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleVolume returns bucketed cleared-energy volume for one market
// instance, the LEM analogue of the teacher's OHLCV candle endpoint.
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r, 10*time.Second)
	defer cancel()

	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1h"
	}

	buckets, err := s.reader.QueryClearedVolume(ctx,
		r.PathValue("region"), r.PathValue("market"), r.PathValue("name"),
		interval, parseIntParam(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

type statsResponse struct {
	Uptime           string `json:"uptime"`
	LiveFeedClients  int    `json:"liveFeedClients"`
	Markets          int    `json:"markets"`
	TotalTransactions int64 `json:"totalTransactions"`
}

// handleStats returns runtime and aggregate statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeoutCtx(r, 5*time.Second)
	defer cancel()

	markets, err := s.reader.CountMarkets(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.reader.CountTransactions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	clients := 0
	if s.feed != nil {
		clients = s.feed.ClientCount()
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Uptime:            time.Since(s.startAt).Truncate(time.Second).String(),
		LiveFeedClients:   clients,
		Markets:           markets,
		TotalTransactions: total,
	})
}


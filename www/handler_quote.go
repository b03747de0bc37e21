package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/icodeforyou/bessquote/database"
	"github.com/icodeforyou/bessquote/quote"
)

const maxRequestBytes = 1 << 20

type quoteResponse struct {
	ID string `json:"id,omitempty"`
	quote.Response
}

type verifyResponse struct {
	ID         string       `json:"id,omitempty"`
	Valid      bool         `json:"valid"`
	Confidence quote.Status `json:"confidence,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// handleCreateQuote computes a quote and stores it when authenticated. A
// rejection answers 422 with the reason and the offending field.
func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req quote.Request
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.GetRequestTimeout())
	defer cancel()

	start := time.Now()
	resp := s.Engine().ComputeQuote(ctx, req)
	s.metrics.ObserveQuote(resp, time.Since(start))

	if resp.Rejection != nil {
		writeJSON(w, http.StatusUnprocessableEntity, quoteResponse{Response: resp})
		return
	}

	id, err := s.db.SaveQuote(r.Context(), req.Facility.Industry, resp.Quote)
	if err != nil {
		s.logger.Error("saving quote failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not store quote")
		return
	}
	s.logger.Info("quote issued",
		slog.String("id", id),
		slog.String("industry", req.Facility.Industry),
		slog.String("confidence", string(resp.Quote.Confidence())))

	s.rtm.Announce(id, req.Facility.Industry, resp.Quote)

	writeJSON(w, http.StatusCreated, quoteResponse{ID: id, Response: resp})
}

func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	page := max(intOrDefault(r.URL, "page", 1), 1)
	pageSize := min(max(intOrDefault(r.URL, "pageSize", 25), 1), 500)

	quotes, err := s.db.ListQuotes(r.Context(), page, pageSize)
	if err != nil {
		s.logger.Error("listing quotes failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list quotes")
		return
	}
	if quotes == nil {
		quotes = []database.QuoteRow{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) storedQuote(w http.ResponseWriter, r *http.Request) (database.QuoteRow, bool) {
	row, err := s.db.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "quote not found")
		return database.QuoteRow{}, false
	}
	if err != nil {
		s.logger.Error("reading quote failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not read quote")
		return database.QuoteRow{}, false
	}
	return row, true
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	if row, ok := s.storedQuote(w, r); ok {
		writeJSON(w, http.StatusOK, row)
	}
}

func (s *Server) handleVerifyStoredQuote(w http.ResponseWriter, r *http.Request) {
	row, ok := s.storedQuote(w, r)
	if !ok {
		return
	}
	res := s.verify(row.Document)
	res.ID = row.ID
	writeJSON(w, http.StatusOK, res)
}

// handleVerifyQuote checks a quote document held by the caller. A quote
// that does not verify is still a 200, the answer is in the body.
func (s *Server) handleVerifyQuote(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, s.verify(data))
}

func (s *Server) verify(doc []byte) verifyResponse {
	q, err := quote.ParseQuote(doc)
	if err != nil {
		return verifyResponse{Error: err.Error()}
	}
	if err := s.Engine().Verify(q); err != nil {
		return verifyResponse{Confidence: q.Confidence(), Error: err.Error()}
	}
	return verifyResponse{Valid: true, Confidence: q.Confidence()}
}

func (s *Server) handleIndustries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine().Industries())
}

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"upi-transaction-lookup/internal/lookup"
	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/internal/snapshot"
	"upi-transaction-lookup/pkg/errors"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the envelope of every failed request
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// HealthResponse reports snapshot and lookup state
type HealthResponse struct {
	Status      string       `json:"status"`
	Version     uint64       `json:"snapshot_version"`
	Digest      string       `json:"snapshot_digest,omitempty"`
	RecordCount int          `json:"record_count"`
	LoadedAt    *time.Time   `json:"loaded_at,omitempty"`
	Source      string       `json:"source,omitempty"`
	Lookups     lookup.Stats `json:"lookups"`
}

// ReloadResponse reports the snapshot published by a reload
type ReloadResponse struct {
	Success  bool               `json:"success"`
	Snapshot *snapshot.Snapshot `json:"snapshot"`
	Count    int                `json:"record_count"`
}

// SearchJSON handles POST /api/transactions/search
func (h *Handler) SearchJSON(w http.ResponseWriter, r *http.Request) {
	var req matcher.Request

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, string(errors.CodeInvalidRequest),
			fmt.Sprintf("invalid JSON body: %v", err),
			"send a JSON object with date, time, amount, sender_last4, last_n and fuzzy_search")
		return
	}

	h.search(w, r, req)
}

// SearchQuery handles GET /api/transactions/search
func (h *Handler) SearchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r.URL.Query())
	if err != nil {
		lookupErr, _ := errors.AsLookupError(err)
		writeError(w, http.StatusBadRequest, string(lookupErr.Code), lookupErr.Message, lookupErr.Suggestion)
		return
	}

	h.search(w, r, req)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, req matcher.Request) {
	result, err := h.searcher.Lookup(r.Context(), req)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Reload handles POST /api/snapshot/reload
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Reload(r.Context())
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ReloadResponse{Success: true, Snapshot: snap, Count: snap.Count()})
}

// Health handles GET /api/health. It answers 503 until a snapshot is loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "loading", Lookups: h.searcher.Stats()}
	status := http.StatusServiceUnavailable

	if snap := h.store.Current(); snap != nil {
		loadedAt := snap.LoadedAt
		resp.Status = "ok"
		resp.Version = snap.Version
		resp.Digest = snap.Digest
		resp.RecordCount = snap.Count()
		resp.LoadedAt = &loadedAt
		resp.Source = snap.Source
		status = http.StatusOK
	}

	writeJSON(w, status, resp)
}

func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithError(err).WithField("request_id", RequestID(r.Context())).Error("Request failed")

	lookupErr, ok := errors.AsLookupError(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, string(errors.CodeUnexpectedError), err.Error(), "")
		return
	}

	status := http.StatusInternalServerError
	switch lookupErr.Category {
	case errors.CategorySource, errors.CategoryLookup, errors.CategoryNetwork:
		status = http.StatusServiceUnavailable
	case errors.CategoryValidation:
		status = http.StatusBadRequest
	}

	writeError(w, status, string(lookupErr.Code), lookupErr.Error(), lookupErr.Suggestion)
}

// requestFromQuery maps query parameters onto a request. Empty values are absent.
func requestFromQuery(values url.Values) (matcher.Request, error) {
	var req matcher.Request

	optional := func(name string) *string {
		if v := values.Get(name); v != "" {
			return &v
		}
		return nil
	}

	req.Date = optional("date")
	req.Time = optional("time")
	req.SenderLast4 = optional("sender_last4")

	if v := values.Get("amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return req, errors.ValidationError(errors.CodeInvalidRequest, "amount", v, err)
		}
		req.Amount = &d
	}

	if v := values.Get("last_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.ValidationError(errors.CodeInvalidRequest, "last_n", v, err)
		}
		req.LastN = &n
	}

	if v := values.Get("fuzzy_search"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.ValidationError(errors.CodeInvalidRequest, "fuzzy_search", v, err)
		}
		req.FuzzySearch = &b
	}

	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message, suggestion string) {
	writeJSON(w, status, ErrorResponse{
		Success:    false,
		Error:      message,
		Code:       code,
		Suggestion: suggestion,
	})
}

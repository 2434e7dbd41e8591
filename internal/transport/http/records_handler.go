package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/light-bringer/storefront-listview/internal/app/listing/contracts"
	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/app/listing/httpsource"
)

// maxBodyBytes bounds the size of a request payload.
const maxBodyBytes = 1 << 20

// RecordsHandler serves a record collection over the storefront API routes:
//
//	GET    /api/price-history/?search=&start_date=&end_date=&page=&sort=&order=
//	PUT    /api/update-entry/{id}/
//	DELETE /api/delete-entry/{id}/
//	POST   /api/submit-price/         (sources implementing contracts.RecordCreator)
type RecordsHandler struct {
	source contracts.DataSource
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewRecordsHandler creates a handler backed by source.
func NewRecordsHandler(source contracts.DataSource, logger *zap.Logger) *RecordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &RecordsHandler{
		source: source,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("GET "+httpsource.DefaultListPath+"{$}", h.list)
	h.mux.HandleFunc("PUT /api/update-entry/{id}/{$}", h.update)
	h.mux.HandleFunc("DELETE /api/delete-entry/{id}/{$}", h.remove)
	if creator, ok := source.(contracts.RecordCreator); ok {
		h.mux.HandleFunc("POST "+httpsource.DefaultSubmitPath+"{$}", h.create(creator))
	}
	return h
}

// ServeHTTP dispatches to the route handlers.
func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(httpsource.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(httpsource.RequestIDHeader, requestID)
	h.mux.ServeHTTP(w, r)
}

func (h *RecordsHandler) list(w http.ResponseWriter, r *http.Request) {
	q, err := domain.ParseQueryState(r.URL.Query())
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	page, err := h.source.FetchPage(r.Context(), q)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	results := page.Records
	if results == nil {
		results = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, httpsource.ListResponse{
		Results:    results,
		TotalPages: page.TotalPages,
	})
}

func (h *RecordsHandler) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, err := decodeRecord(w, r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ValidationError("update record", err))
		return
	}
	if bodyID := record.ID(); bodyID != "" && bodyID != id {
		h.writeError(w, r, http.StatusBadRequest,
			domain.ValidationError("update record", errors.New("body id does not match path id")))
		return
	}
	record[domain.FieldID] = id

	stored, err := h.source.UpdateRecord(r.Context(), record)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *RecordsHandler) create(creator contracts.RecordCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := decodeRecord(w, r)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, domain.ValidationError("create record", err))
			return
		}
		delete(record, domain.FieldID)

		stored, err := creator.CreateRecord(r.Context(), record)
		if err != nil {
			h.writeError(w, r, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, stored)
	}
}

func (h *RecordsHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.source.DeleteRecord(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidPage),
		errors.Is(err, domain.ErrInvalidSortOrder),
		errors.Is(err, domain.ErrUnsortableField):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *RecordsHandler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", w.Header().Get(httpsource.RequestIDHeader)),
		zap.Int("status", status),
		zap.Error(err),
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
		msg = "internal server error"
		if status == http.StatusBadGateway {
			msg = "storage unavailable"
		}
	} else {
		h.logger.Info("request rejected", fields...)
	}
	writeJSON(w, status, httpsource.ErrorResponse{Error: msg})
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (domain.Record, error) {
	var record domain.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		record = domain.Record{}
	}
	return record, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

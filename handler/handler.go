// Package handler provides the HTTP handlers for the item server.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/stevemurr/simple-item-server/item"
	"github.com/stevemurr/simple-item-server/middleware"
)

// Client-facing messages for failures that are not item errors.
const (
	MsgInvalidJSON   = "Invalid JSON"
	MsgBodyTooLarge  = "Request body too large"
	MsgInternalError = "Internal server error"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// ItemService is the set of item operations the handlers call.
// *item.Service satisfies it.
type ItemService interface {
	Create(req item.CreateRequest) (item.Item, error)
	List() ([]item.Item, error)
	Get(id string) (item.Item, error)
	Update(id string, req item.UpdateRequest) (item.Item, error)
	Delete(id string) error
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	items   ItemService
	mux     *http.ServeMux
	log     *zap.Logger
	maxBody int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMaxBodyBytes limits the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithRoute mounts an extra handler, for example the metrics endpoint.
func WithRoute(pattern string, next http.Handler) Option {
	return func(h *Handler) {
		h.mux.Handle(pattern, next)
	}
}

// New creates a Handler and wires up all routes.
func New(items ItemService, opts ...Option) *Handler {
	h := &Handler{
		items:   items,
		mux:     http.NewServeMux(),
		log:     zap.NewNop(),
		maxBody: DefaultMaxBodyBytes,
	}
	h.routes()
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	// Items
	h.mux.HandleFunc("POST /items", h.createItem)
	h.mux.HandleFunc("GET /items", h.listItems)
	h.mux.HandleFunc("GET /items/{id}", h.getItem)
	h.mux.HandleFunc("PUT /items/{id}", h.updateItem)
	h.mux.HandleFunc("DELETE /items/{id}", h.deleteItem)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errTrailingData is returned when a body holds more than one JSON value.
var errTrailingData = errors.New("unexpected data after JSON value")

// readJSON decodes the body into v. An empty body leaves v untouched.
// The body must hold exactly one JSON value.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errTrailingData
	}
	return nil
}

// writeDecodeError renders a body decoding failure.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
		return
	}
	writeError(w, http.StatusBadRequest, MsgInvalidJSON)
}

// writeItemError maps service errors to status codes. Anything that is not
// a validation or not-found error is logged and hidden behind a 500.
func (h *Handler) writeItemError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *item.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, item.ErrNotFound):
		writeError(w, http.StatusNotFound, item.MsgNotFound)
	default:
		h.log.Error("item operation failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, MsgInternalError)
	}
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Simple Item Server",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- item CRUD ----------

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req item.CreateRequest
	if err := h.readJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	created, err := h.items.Create(req)
	if err != nil {
		h.writeItemError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List()
	if err != nil {
		h.writeItemError(w, r, err)
		return
	}
	if items == nil {
		items = []item.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.Get(r.PathValue("id"))
	if err != nil {
		h.writeItemError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req item.UpdateRequest
	if err := h.readJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	updated, err := h.items.Update(r.PathValue("id"), req)
	if err != nil {
		h.writeItemError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.PathValue("id")); err != nil {
		h.writeItemError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/storage"
)

// DefaultMaxUploadBytes caps book file uploads at 512 MiB.
const DefaultMaxUploadBytes = 512 << 20

// Service is the library surface the handlers call into.
type Service interface {
	Add(ctx context.Context, book quire.CreateBook, data []byte) (quire.Book, error)
	Get(ctx context.Context, id string) (quire.Book, error)
	Open(ctx context.Context, id string) (quire.Book, storage.Object, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query quire.ListQuery) (quire.ListResult, error)
	UpdateProgress(ctx context.Context, id string, p quire.Progress) error
}

// HealthReporter exposes provider health for the healthz endpoint.
type HealthReporter interface {
	Snapshot() map[string]storage.HealthStatus
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	CORS           CORSConfig
	MaxUploadBytes int64
	// Health feeds /healthz; nil disables the provider section.
	Health HealthReporter
}

// Handler provides HTTP handlers for the book library API.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with all library routes configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger())

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", h.handleHealth)

	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleAdd)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Get("/file", h.handleFile)
			r.Patch("/progress", h.handleProgress)
		})
	})

	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = max(0, min(1000, parsed))
		}
	}

	query := quire.ListQuery{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
	}

	result, err := h.service.List(r.Context(), query)
	if err != nil {
		HandleError(w, err)
		return
	}

	if result.Degraded {
		w.Header().Set("X-Partial-Result", "true")
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)

	file, header, book, err := parseBookForm(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_form", "could not read file")
		return
	}

	if book.ContentType == "" {
		book.ContentType = header.Header.Get("Content-Type")
	}

	stored, err := h.service.Add(r.Context(), book, data)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, stored)
}

// parseBookForm pulls the file part and the book attributes out of a
// multipart upload. Title falls back to the uploaded file name.
func parseBookForm(r *http.Request) (multipart.File, *multipart.FileHeader, quire.CreateBook, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, quire.CreateBook{}, fmt.Errorf("missing file part: %w", err)
	}

	book := quire.CreateBook{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		Format:      r.FormValue("format"),
		ContentType: r.FormValue("content_type"),
	}
	if book.Title == "" {
		book.Title = header.Filename
	}

	return file, header, book, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !quire.IsValidBookID(id) {
		WriteError(w, http.StatusBadRequest, "invalid_id", "Invalid book id")
		return
	}

	book, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !quire.IsValidBookID(id) {
		WriteError(w, http.StatusBadRequest, "invalid_id", "Invalid book id")
		return
	}

	book, obj, err := h.service.Open(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	filename := book.ID
	if book.Format != "" {
		filename += "." + book.Format
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(obj.Data)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !quire.IsValidBookID(id) {
		WriteError(w, http.StatusBadRequest, "invalid_id", "Invalid book id")
		return
	}

	var p quire.Progress
	if err := decodeJSON(r.Body, &p); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "Invalid progress payload")
		return
	}

	if err := h.service.UpdateProgress(r.Context(), id, p); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !quire.IsValidBookID(id) {
		WriteError(w, http.StatusBadRequest, "invalid_id", "Invalid book id")
		return
	}

	err := h.service.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, quire.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "Book not found")
		} else {
			HandleError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// healthResponse is the /healthz payload. Providers is keyed by provider
// id and reflects the gateway's current health view.
type healthResponse struct {
	Status    string                          `json:"status"`
	Providers map[string]storage.HealthStatus `json:"providers,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.config.Health != nil {
		resp.Providers = h.config.Health.Snapshot()
	}
	_ = WriteJSON(w, http.StatusOK, resp)
}

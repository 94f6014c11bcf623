package mbaas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"github.com/antonrybalko/wfm-mbaas-go/internal/processor"
	"github.com/antonrybalko/wfm-mbaas-go/internal/repository"
	"github.com/antonrybalko/wfm-mbaas-go/internal/storage"
	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"github.com/go-chi/chi/v5"
)

// Common errors
var (
	ErrInvalidBody  = errors.New("request body must be a JSON object")
	ErrFileTooLarge = errors.New("file too large")
)

func (a *API) mbaasRouter() http.Handler {
	r := chi.NewRouter()

	r.Route("/db/{collection}", func(r chi.Router) {
		r.Get("/", a.listRecords)
		r.Post("/", a.createRecord)
		r.Get("/{guid}", a.getRecord)
		r.Put("/{guid}", a.updateRecord)
		r.Delete("/{guid}", a.deleteRecord)
	})

	r.Put("/files/*", a.putFile)
	r.Get("/files/*", a.getFile)
	r.Delete("/files/*", a.deleteFile)

	return r
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	records, err := a.data.List(r.Context(), collection)
	if err != nil {
		web.Error(w, r, a.dataError(err))
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"count": len(records), "list": records})
}

func (a *API) createRecord(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		web.Error(w, r, err)
		return
	}

	record, err := a.data.Create(r.Context(), chi.URLParam(r, "collection"), fields)
	if err != nil {
		web.Error(w, r, a.dataError(err))
		return
	}

	a.logger.Debugw("Record created", "collection", record.Collection, "guid", record.GUID)
	web.WriteJSON(w, http.StatusCreated, record)
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request) {
	record, err := a.data.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "guid"))
	if err != nil {
		web.Error(w, r, a.dataError(err))
		return
	}
	web.WriteJSON(w, http.StatusOK, record)
}

func (a *API) updateRecord(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		web.Error(w, r, err)
		return
	}

	record, err := a.data.Update(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "guid"), fields)
	if err != nil {
		web.Error(w, r, a.dataError(err))
		return
	}
	web.WriteJSON(w, http.StatusOK, record)
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	collection, guid := chi.URLParam(r, "collection"), chi.URLParam(r, "guid")
	if err := a.data.Delete(r.Context(), collection, guid); err != nil {
		web.Error(w, r, a.dataError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeFields(r *http.Request) (map[string]any, error) {
	var fields map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxFileSize)).Decode(&fields); err != nil || fields == nil {
		return nil, web.NewStatusError(http.StatusBadRequest, ErrInvalidBody)
	}
	return fields, nil
}

func (a *API) dataError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return web.NewStatusError(http.StatusNotFound, err)
	case errors.Is(err, repository.ErrInvalidInput):
		return web.NewStatusError(http.StatusBadRequest, err)
	default:
		return fmt.Errorf("data store: %w", err)
	}
}

func (a *API) putFile(w http.ResponseWriter, r *http.Request) {
	key, err := storage.CleanKey(chi.URLParam(r, "*"))
	if err != nil {
		web.Error(w, r, web.NewStatusError(http.StatusBadRequest, err))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxFileSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			web.Error(w, r, web.NewStatusError(http.StatusRequestEntityTooLarge, ErrFileTooLarge))
			return
		}
		web.Error(w, r, web.NewStatusError(http.StatusBadRequest, err))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	url, err := a.files.Put(r.Context(), key, body, contentType)
	if err != nil {
		web.Error(w, r, a.fileError(err))
		return
	}

	a.logger.Debugw("File stored", "key", key, "size", len(body))
	web.WriteJSON(w, http.StatusCreated, domain.Blob{
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        len(body),
	})
}

func (a *API) getFile(w http.ResponseWriter, r *http.Request) {
	key, err := storage.CleanKey(chi.URLParam(r, "*"))
	if err != nil {
		web.Error(w, r, web.NewStatusError(http.StatusBadRequest, err))
		return
	}

	data, contentType, err := a.files.Get(r.Context(), key)
	if err != nil {
		web.Error(w, r, a.fileError(err))
		return
	}

	if q := r.URL.Query(); q.Has("width") || q.Has("height") {
		data, contentType, err = a.thumbnail(data, q.Get("width"), q.Get("height"))
		if err != nil {
			web.Error(w, r, err)
			return
		}
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// thumbnail resizes an image file to the requested dimensions
func (a *API) thumbnail(data []byte, width, height string) ([]byte, string, error) {
	w, err := dimension(width)
	if err != nil {
		return nil, "", web.NewStatusError(http.StatusBadRequest, err)
	}
	h, err := dimension(height)
	if err != nil {
		return nil, "", web.NewStatusError(http.StatusBadRequest, err)
	}

	resized, contentType, err := a.images.Resize(data, w, h)
	switch {
	case errors.Is(err, processor.ErrUnsupportedFormat):
		return nil, "", web.NewStatusError(http.StatusUnsupportedMediaType, err)
	case errors.Is(err, processor.ErrInvalidDimensions):
		return nil, "", web.NewStatusError(http.StatusBadRequest, err)
	case err != nil:
		return nil, "", fmt.Errorf("thumbnail: %w", err)
	}
	return resized, contentType, nil
}

func dimension(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", processor.ErrInvalidDimensions, value)
	}
	return n, nil
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request) {
	key, err := storage.CleanKey(chi.URLParam(r, "*"))
	if err != nil {
		web.Error(w, r, web.NewStatusError(http.StatusBadRequest, err))
		return
	}

	if err := a.files.Delete(r.Context(), key); err != nil {
		web.Error(w, r, a.fileError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) fileError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return web.NewStatusError(http.StatusNotFound, err)
	case errors.Is(err, storage.ErrInvalidKey):
		return web.NewStatusError(http.StatusBadRequest, err)
	default:
		return fmt.Errorf("file store: %w", err)
	}
}

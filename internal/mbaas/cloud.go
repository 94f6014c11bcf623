package mbaas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"github.com/go-chi/chi/v5"
)

// ErrUnknownFunction is returned for an unregistered cloud function
var ErrUnknownFunction = errors.New("unknown cloud function")

func (a *API) cloudRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/{function}", a.invokeCloud)
	r.Post("/{function}", a.invokeCloud)
	return r
}

func (a *API) invokeCloud(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "function")
	fn, ok := a.cloudFunc(name)
	if !ok {
		web.Error(w, r, web.NewStatusError(http.StatusNotFound, fmt.Errorf("%w: %s", ErrUnknownFunction, name)))
		return
	}

	params := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	if r.Method == http.MethodPost {
		var body map[string]any
		err := json.NewDecoder(io.LimitReader(r.Body, MaxFileSize)).Decode(&body)
		if err != nil && !errors.Is(err, io.EOF) {
			web.Error(w, r, web.NewStatusError(http.StatusBadRequest, ErrInvalidBody))
			return
		}
		for key, value := range body {
			params[key] = value
		}
	}

	result, err := fn(r.Context(), params)
	if err != nil {
		web.Error(w, r, fmt.Errorf("cloud function %s: %w", name, err))
		return
	}

	web.WriteJSON(w, http.StatusOK, result)
}

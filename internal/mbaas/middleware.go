package mbaas

import (
	"context"
	"errors"
	"net/http"

	"github.com/antonrybalko/wfm-mbaas-go/internal/auth"
	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"github.com/go-chi/chi/v5/middleware"
)

// Request headers sent by the mobile SDKs
const (
	HeaderAppID     = "X-FH-appid"
	HeaderAppKey    = "X-FH-appkey"
	HeaderCUID      = "X-FH-cuid"
	HeaderProjectID = "X-FH-projectid"
)

type contextKey string

const paramsKey contextKey = "fhParams"

// Params are the client identifiers attached to each request
type Params struct {
	AppID     string
	AppKey    string
	CUID      string
	ProjectID string
}

// ParamsFrom returns the Params attached by the fh middleware
func ParamsFrom(ctx context.Context) (*Params, bool) {
	p, ok := ctx.Value(paramsKey).(*Params)
	return p, ok && p != nil
}

// fhMiddleware attaches client params and the session of a bearer token.
// A bad token is handed to the error handler.
func (a *API) fhMiddleware() web.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := &Params{
				AppID:     r.Header.Get(HeaderAppID),
				AppKey:    r.Header.Get(HeaderAppKey),
				CUID:      r.Header.Get(HeaderCUID),
				ProjectID: r.Header.Get(HeaderProjectID),
			}
			ctx := context.WithValue(r.Context(), paramsKey, params)

			if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" && a.sessions != nil {
				claims, err := a.sessions.Verify(ctx, token)
				if err != nil {
					web.Fail(r, web.NewStatusError(http.StatusUnauthorized, err))
				} else {
					ctx = auth.WithClaims(ctx, claims)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// errorHandler renders the error recorded for a request. An error recorded
// by an earlier middleware stops the request before it reaches a route.
func (a *API) errorHandler() web.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := web.Err(r); err != nil {
				a.renderError(w, r, err)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if err := web.Err(r); err != nil && ww.Status() == 0 {
				a.renderError(ww, r, err)
			}
		})
	}
}

func (a *API) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := web.StatusOf(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		a.logger.Errorw("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"requestID", middleware.GetReqID(r.Context()),
		)
		message = http.StatusText(status)
	} else {
		a.logger.Debugw("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	var se *web.StatusError
	if errors.As(err, &se) && status < http.StatusInternalServerError {
		message = se.Err.Error()
	}

	web.WriteJSON(w, status, web.ErrorResponse{Error: message, Code: status})
	web.MarkRendered(r)
}

package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagMiddleware(tag string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Trace", tag)
			next.ServeHTTP(w, r)
		})
	}
}

func TestApplication_MiddlewareRunInRegistrationOrder(t *testing.T) {
	app := NewApplication(nil)
	app.Use(tagMiddleware("first"))
	app.Use(tagMiddleware("second"))
	app.Mount("/sys", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	app.Use(tagMiddleware("third"))

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sys", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"first", "second"}, rr.Header().Values("X-Trace"))

	t.Run("LaterMiddlewareSeesUnclaimedRequests", func(t *testing.T) {
		rr := httptest.NewRecorder()
		app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/other", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, []string{"first", "second", "third"}, rr.Header().Values("X-Trace"))
	})
}

func TestApplication_MountBeforeMiddleware(t *testing.T) {
	var ran bool
	app := NewApplication(nil)
	app.Mount("/sys", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sys"))
	}))
	app.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ran = true
			WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "denied", Code: http.StatusUnauthorized})
		})
	})
	app.Mount("/user", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("user"))
	}))
	handler := app.Handler()

	t.Run("EarlierMountIsNotIntercepted", func(t *testing.T) {
		ran = false
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sys/x", nil))

		assert.False(t, ran)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "sys", rr.Body.String())
	})

	t.Run("LaterMountIsIntercepted", func(t *testing.T) {
		ran = false
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/user", nil))

		assert.True(t, ran)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("PrefixMustMatchWholeSegment", func(t *testing.T) {
		ran = false
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/system", nil))

		assert.True(t, ran)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestApplication_MountErrorReachesLaterHandler(t *testing.T) {
	app := NewApplication(nil)
	app.Mount("/fail", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, NewStatusError(http.StatusConflict, errors.New("taken")))
	}))
	app.Mount("/fail/skipped", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("should not run"))
	}))
	app.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Err(r); err != nil {
				WriteJSON(w, StatusOf(err), map[string]string{"handled": err.Error()})
				MarkRendered(r)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fail/skipped", nil))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"handled":"taken"}`, rr.Body.String())
}

func TestApplication_MountRoutesByPrefix(t *testing.T) {
	sys := chi.NewRouter()
	sys.Get("/info/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sys"))
	})
	mbaas := chi.NewRouter()
	mbaas.Get("/db", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mbaas"))
	})

	app := NewApplication(nil)
	app.Mount("/sys", sys)
	app.Mount("/mbaas", mbaas)
	handler := app.Handler()

	t.Run("Sys", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sys/info/ping", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "sys", rr.Body.String())
	})

	t.Run("MBaaS", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mbaas/db", nil))
		assert.Equal(t, "mbaas", rr.Body.String())
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error":"Not found"}`, rr.Body.String())
	})
}

func TestApplication_MiddlewareRunWithoutRoutes(t *testing.T) {
	app := NewApplication(nil)
	app.Use(tagMiddleware("only"))

	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "only", rr.Header().Get("X-Trace"))
}

func TestApplication_RegisterAfterServePanics(t *testing.T) {
	app := NewApplication(nil)
	app.Handler()

	assert.Panics(t, func() { app.Use(tagMiddleware("late")) })
	assert.Panics(t, func() { app.Mount("/late", http.NotFoundHandler()) })
}

func TestApplication_RejectsNil(t *testing.T) {
	app := NewApplication(nil)
	assert.Panics(t, func() { app.Use(nil) })
	assert.Panics(t, func() { app.Mount("/x", nil) })
}

func TestApplication_ListenAndShutdown(t *testing.T) {
	app := NewApplication(nil)
	app.Mount("/sys", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("up"))
	}))

	require.NoError(t, app.Listen(0, "127.0.0.1"))
	defer func() {
		assert.NoError(t, app.Shutdown(context.Background()))
	}()

	addr := app.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/sys", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "up", string(body))

	t.Run("SecondListenFails", func(t *testing.T) {
		assert.ErrorIs(t, app.Listen(0, "127.0.0.1"), ErrAlreadyListening)
	})

	t.Run("BindFailureIsReturned", func(t *testing.T) {
		other := NewApplication(nil)
		_, portStr, err := net.SplitHostPort(addr.String())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)

		err = other.Listen(port, "127.0.0.1")
		assert.Error(t, err)
		assert.Nil(t, other.Addr())
	})
}

func TestApplication_ShutdownBeforeListen(t *testing.T) {
	app := NewApplication(nil)
	assert.NoError(t, app.Shutdown(context.Background()))
}

func TestChi_Framework(t *testing.T) {
	var fw Framework = NewChi(nil)

	app := fw.New()
	require.NotNil(t, app)
	_, ok := app.(*Application)
	assert.True(t, ok)
	assert.NotNil(t, fw.Static(t.TempDir()))
}

func TestErrorScope(t *testing.T) {
	t.Run("UnrenderedErrorIsWritten", func(t *testing.T) {
		app := NewApplication(nil)
		app.Mount("/fail", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Error(w, r, NewStatusError(http.StatusTeapot, errors.New("short and stout")))
		}))

		rr := httptest.NewRecorder()
		app.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fail", nil))

		assert.Equal(t, http.StatusTeapot, rr.Code)
		assert.JSONEq(t, `{"error":"short and stout","code":418}`, rr.Body.String())
	})

	t.Run("FirstErrorWins", func(t *testing.T) {
		var recorded error
		handler := ErrorScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, Fail(r, errors.New("first")))
			assert.True(t, Fail(r, errors.New("second")))
			recorded = Err(r)
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Error(t, recorded)
		assert.Equal(t, "first", recorded.Error())
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("RenderedErrorIsNotWrittenTwice", func(t *testing.T) {
		handler := ErrorScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Fail(r, errors.New("boom"))
			MarkRendered(r)
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Empty(t, rr.Body.String())
	})

	t.Run("NoScope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.False(t, Fail(req, errors.New("lost")))
		assert.NoError(t, Err(req))
		assert.False(t, Rendered(req))

		rr := httptest.NewRecorder()
		Error(rr, req, NewStatusError(http.StatusBadRequest, errors.New("bad")))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"bad","code":400}`, rr.Body.String())
	})
}

func TestStatusOf(t *testing.T) {
	base := errors.New("missing")
	wrapped := fmt.Errorf("lookup: %w", NewStatusError(http.StatusNotFound, base))

	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}

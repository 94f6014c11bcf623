// Package web is the HTTP framework facade used by the bootstrap. It keeps
// an ordered list of middleware and mounted handlers and compiles them into
// a single chain when the application starts serving.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrAlreadyListening is returned when Listen is called twice
var ErrAlreadyListening = errors.New("application is already listening")

// Middleware is a chi-compatible middleware
type Middleware func(http.Handler) http.Handler

// App is an HTTP application that middleware and handlers are registered on
type App interface {
	// Use registers a middleware for requests no earlier mount served
	Use(mw Middleware)
	// Mount registers a handler under a path prefix
	Mount(pattern string, h http.Handler)
	// Listen binds host:port and starts serving in the background
	Listen(port int, host string) error
	// Shutdown gracefully stops serving
	Shutdown(ctx context.Context) error
}

// Framework creates applications and the middleware that ships with the framework
type Framework interface {
	New() App
	Static(dir string) Middleware
}

// Chi is the Framework backed by go-chi
type Chi struct {
	logger *zap.SugaredLogger
}

// NewChi creates a chi backed framework
func NewChi(logger *zap.SugaredLogger) *Chi {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Chi{logger: logger}
}

// New creates a new application
func (c *Chi) New() App {
	return NewApplication(c.logger)
}

// Static returns a middleware serving files from dir
func (c *Chi) Static(dir string) Middleware {
	return Static(dir)
}

type registration struct {
	pattern string
	mw      Middleware
	handler http.Handler
}

// Application implements App on top of a chi mux
type Application struct {
	mu            sync.Mutex
	logger        *zap.SugaredLogger
	registrations []registration
	handler       http.Handler
	server        *http.Server
	listener      net.Listener
}

// NewApplication creates an empty application
func NewApplication(logger *zap.SugaredLogger) *Application {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Application{logger: logger}
}

// Use registers a middleware. Middleware run in registration order.
func (a *Application) Use(mw Middleware) {
	if mw == nil {
		panic("web: nil middleware")
	}
	a.register(registration{mw: mw})
}

// Mount registers h under pattern
func (a *Application) Mount(pattern string, h http.Handler) {
	if h == nil {
		panic(fmt.Sprintf("web: nil handler mounted at %s", pattern))
	}
	a.register(registration{pattern: pattern, handler: h})
}

func (a *Application) register(reg registration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handler != nil {
		panic("web: registrations must happen before the application serves requests")
	}
	a.registrations = append(a.registrations, reg)
}

// Handler compiles the registrations on first use and returns the result
func (a *Application) Handler() http.Handler {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handler == nil {
		a.handler = a.compile()
	}
	return a.handler
}

// compile chains the registrations in the order they were made. A mount
// serves the requests under its prefix and passes everything else on, so a
// middleware only sees requests that no earlier mount claimed.
func (a *Application) compile() http.Handler {
	var next http.Handler = http.HandlerFunc(notFound)
	for i := len(a.registrations) - 1; i >= 0; i-- {
		reg := a.registrations[i]
		if reg.mw != nil {
			next = reg.mw(next)
			continue
		}
		next = mount(reg.pattern, reg.handler, next)
	}

	chain := chi.Middlewares{
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(a.logger),
		middleware.Recoverer,
		ErrorScope,
	}
	return chain.Handler(next)
}

// mount routes requests under pattern to h. Requests outside the prefix, and
// requests that already carry an error, go to next. An error h records
// without writing a response is passed on to next as well, where a later
// error handler can render it.
func mount(pattern string, h http.Handler, next http.Handler) http.Handler {
	routes := chi.NewRouter()
	routes.NotFound(notFound)
	routes.MethodNotAllowed(methodNotAllowed)
	routes.Mount(pattern, h)

	prefix := strings.TrimSuffix(pattern, "/")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if Err(r) != nil || (p != prefix && !strings.HasPrefix(p, prefix+"/")) {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		routes.ServeHTTP(ww, r)

		if Err(r) != nil && ww.Status() == 0 && !Rendered(r) {
			next.ServeHTTP(ww, r)
		}
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	// A pending error is rendered by the error scope
	if Err(r) != nil {
		return
	}
	WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}

// Listen binds host:port and serves in a goroutine. Bind errors are returned.
func (a *Application) Listen(port int, host string) error {
	handler := a.Handler()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyListening
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	a.server = server
	a.listener = ln

	go func() {
		a.logger.Infof("Server listening on %s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorw("Server failed", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Listen
func (a *Application) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Shutdown gracefully shuts the server down. It is a no-op before Listen.
func (a *Application) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

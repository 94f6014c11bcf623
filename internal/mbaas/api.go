// Package mbaas is the mBaaS SDK facade. Express returns the named
// handlers the bootstrap mounts: sys, mbaas, fhmiddleware, cloud and the
// terminal error handler.
package mbaas

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/antonrybalko/wfm-mbaas-go/internal/auth"
	"github.com/antonrybalko/wfm-mbaas-go/internal/processor"
	"github.com/antonrybalko/wfm-mbaas-go/internal/repository"
	"github.com/antonrybalko/wfm-mbaas-go/internal/storage"
	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"go.uber.org/zap"
)

// MaxFileSize is the maximum allowed size for uploaded files (15MB)
const MaxFileSize = 15 * 1024 * 1024

// CloudFunc is a function exposed under /cloud/{name}
type CloudFunc func(ctx context.Context, params map[string]any) (any, error)

// HealthCheck reports whether a dependency is healthy
type HealthCheck func(ctx context.Context) error

// Options configures the SDK facade. Nil stores default to in-memory ones.
type Options struct {
	Logger   *zap.SugaredLogger
	Version  string
	Data     repository.DataRepository
	Files    storage.BlobStore
	Sessions *auth.Sessions
	Images   processor.Resizer
}

// Express is the set of handlers handed to the HTTP application
type Express struct {
	Sys          func(securable []string) http.Handler
	MBaaS        http.Handler
	FHMiddleware func() web.Middleware
	Cloud        func() http.Handler
	ErrorHandler func() web.Middleware
}

// API is the mBaaS SDK entry point
type API struct {
	logger   *zap.SugaredLogger
	version  string
	data     repository.DataRepository
	files    storage.BlobStore
	sessions *auth.Sessions
	images   processor.Resizer
	started  time.Time

	mu     sync.RWMutex
	cloud  map[string]CloudFunc
	checks map[string]HealthCheck
}

// New creates the SDK facade
func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Data == nil {
		opts.Data = repository.NewMemoryDataRepository()
	}
	if opts.Files == nil {
		opts.Files = storage.NewMemoryBlobStore("")
	}
	if opts.Images == nil {
		opts.Images = processor.NewProcessor()
	}

	a := &API{
		logger:   opts.Logger,
		version:  opts.Version,
		data:     opts.Data,
		files:    opts.Files,
		sessions: opts.Sessions,
		images:   opts.Images,
		started:  time.Now(),
		cloud:    make(map[string]CloudFunc),
		checks:   make(map[string]HealthCheck),
	}
	a.AddHealthCheck("data", a.data.Ping)
	a.AddHealthCheck("files", a.files.Ping)
	return a
}

// Express builds the handler set
func (a *API) Express() Express {
	return Express{
		Sys:          a.sys,
		MBaaS:        a.mbaasRouter(),
		FHMiddleware: a.fhMiddleware,
		Cloud:        a.cloudRouter,
		ErrorHandler: a.errorHandler,
	}
}

// RegisterCloud exposes fn as /cloud/{name}
func (a *API) RegisterCloud(name string, fn CloudFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cloud[name] = fn
}

func (a *API) cloudFunc(name string) (CloudFunc, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	fn, ok := a.cloud[name]
	return fn, ok
}

// AddHealthCheck adds a check reported by /sys/info/health
func (a *API) AddHealthCheck(name string, check HealthCheck) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.checks[name] = check
}

func (a *API) healthChecks() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package app

import (
	"errors"
	"fmt"

	"github.com/antonrybalko/wfm-mbaas-go/internal/config"
	"github.com/antonrybalko/wfm-mbaas-go/internal/mbaas"
	"github.com/antonrybalko/wfm-mbaas-go/internal/mediator"
	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"go.uber.org/zap"
)

// Mount points of the SDK handlers
const (
	SysPrefix   = "/sys"
	MBaaSPrefix = "/mbaas"
)

// DefaultStaticDir is the directory served by the static middleware
const DefaultStaticDir = "public"

// SDK provides the mBaaS handler set
type SDK interface {
	Express() mbaas.Express
}

// UserRouter is the user-management router initialized during bootstrap
type UserRouter interface {
	Init(med *mediator.Mediator, app web.App, exclusions []string, done func(error))
}

// Deps are the collaborators wired together by Bootstrap
type Deps struct {
	Framework  web.Framework
	CORS       func() web.Middleware
	SDK        SDK
	UserRouter UserRouter
	Mediator   *mediator.Mediator

	// StaticDir defaults to DefaultStaticDir
	StaticDir string
	// Exclusions always contains the password field
	Exclusions         []string
	SecurableEndpoints []string
	// CloudPrefix mounts the cloud handler when set
	CloudPrefix string

	// Host and Port default to 0.0.0.0:8001
	Host string
	Port int

	// OnUserRouterReady receives the user router completion result
	OnUserRouterReady func(error)
	Logger            *zap.SugaredLogger
}

// Bootstrap registers CORS, static files, the SDK handlers and the user
// router on a new application, then starts listening. The error handler is
// always the last registration.
func Bootstrap(d Deps) (web.App, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	med := d.Mediator
	if med == nil {
		med = mediator.New(logger)
	}
	cors := d.CORS
	if cors == nil {
		cors = web.CORS
	}
	staticDir := d.StaticDir
	if staticDir == "" {
		staticDir = DefaultStaticDir
	}
	host := d.Host
	if host == "" {
		host = config.DefaultHost
	}
	port := d.Port
	if port == 0 {
		port = config.DefaultPort
	}

	app := d.Framework.New()

	app.Use(cors())
	app.Use(d.Framework.Static(staticDir))

	express := d.SDK.Express()
	app.Mount(SysPrefix, express.Sys(d.SecurableEndpoints))
	app.Mount(MBaaSPrefix, express.MBaaS)
	app.Use(express.FHMiddleware())

	d.UserRouter.Init(med, app, exclusionList(d.Exclusions), func(err error) {
		if err != nil {
			logger.Errorw("User router failed to initialize", "error", err)
		} else {
			logger.Infow("User router ready")
		}
		if d.OnUserRouterReady != nil {
			d.OnUserRouterReady(err)
		}
	})

	if d.CloudPrefix != "" {
		app.Mount(d.CloudPrefix, express.Cloud())
	}

	app.Use(express.ErrorHandler())

	if err := app.Listen(port, host); err != nil {
		return nil, fmt.Errorf("failed to start application: %w", err)
	}

	logger.Infow("Application listening", "host", host, "port", port)
	return app, nil
}

func (d Deps) validate() error {
	var errs []error
	if d.Framework == nil {
		errs = append(errs, errors.New("framework is required"))
	}
	if d.SDK == nil {
		errs = append(errs, errors.New("mbaas SDK is required"))
	}
	if d.UserRouter == nil {
		errs = append(errs, errors.New("user router is required"))
	}
	return errors.Join(errs...)
}

func exclusionList(fields []string) []string {
	list := []string{config.PasswordField}
	for _, field := range fields {
		if field != config.PasswordField {
			list = append(list, field)
		}
	}
	return list
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/antonrybalko/wfm-mbaas-go/internal/auth"
	"github.com/antonrybalko/wfm-mbaas-go/internal/config"
	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"github.com/antonrybalko/wfm-mbaas-go/internal/mediator"
	"github.com/antonrybalko/wfm-mbaas-go/internal/service"
	"github.com/antonrybalko/wfm-mbaas-go/internal/web"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserPrefix is where the user router mounts itself
const UserPrefix = "/api/wfm/user"

// Mediator topics answered by the user store
const (
	TopicUsersList = "wfm:users:list"
	TopicUsersRead = "wfm:users:read"
	TopicUsersAuth = "wfm:users:auth"
)

// prepareTimeout bounds schema creation and seeding
const prepareTimeout = 60 * time.Second

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request body")
	ErrNotReady       = errors.New("user store is still initializing")
)

// UserRouterOptions configures a UserRouter
type UserRouterOptions struct {
	Users    *service.UserService
	SeedPath string
	// Prepare runs before seeding, e.g. to create the database schema
	Prepare func(ctx context.Context) error
	Logger  *zap.SugaredLogger
}

// UserRouter is the workforce user-management router. Init wires it to the
// mediator and the application.
type UserRouter struct {
	users    *service.UserService
	seedPath string
	prepare  func(ctx context.Context) error
	logger   *zap.SugaredLogger

	exclusions []string

	mu      sync.RWMutex
	ready   bool
	initErr error
}

// NewUserRouter creates a new user router
func NewUserRouter(opts UserRouterOptions) *UserRouter {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &UserRouter{
		users:    opts.Users,
		seedPath: opts.SeedPath,
		prepare:  opts.Prepare,
		logger:   opts.Logger,
	}
}

// Init subscribes the user store to med, mounts the routes on app and then
// prepares the store in the background. done is called exactly once, with
// the preparation error if any. Fields named in exclusions are removed from
// every user returned to clients.
func (u *UserRouter) Init(med *mediator.Mediator, app web.App, exclusions []string, done func(error)) {
	u.exclusions = withPassword(exclusions)

	med.Subscribe(TopicUsersList, u.handleList)
	med.Subscribe(TopicUsersRead, u.handleRead)
	med.Subscribe(TopicUsersAuth, u.handleAuth)

	app.Mount(UserPrefix, u.routes(med))

	var once sync.Once
	complete := func(err error) {
		once.Do(func() {
			if done != nil {
				done(err)
			}
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), prepareTimeout)
		defer cancel()

		err := u.prepareStore(ctx)

		u.mu.Lock()
		u.ready = true
		u.initErr = err
		u.mu.Unlock()

		if err != nil {
			u.logger.Errorw("User store initialization failed", "error", err)
		} else {
			u.logger.Infow("User router initialized", "prefix", UserPrefix)
		}
		complete(err)
	}()
}

// Ready reports whether the store finished initializing without error
func (u *UserRouter) Ready(ctx context.Context) error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if !u.ready {
		return ErrNotReady
	}
	return u.initErr
}

func (u *UserRouter) prepareStore(ctx context.Context) error {
	if u.prepare != nil {
		if err := u.prepare(ctx); err != nil {
			return fmt.Errorf("failed to prepare user store: %w", err)
		}
	}

	if u.seedPath == "" {
		return nil
	}

	seed, err := config.LoadUserSeed(u.seedPath)
	if err != nil {
		if errors.Is(err, config.ErrSeedNotFound) {
			u.logger.Warnw("No user seed file, starting without users", "path", u.seedPath)
			return nil
		}
		return err
	}

	_, err = u.users.Seed(ctx, seed)
	return err
}

func (u *UserRouter) routes(med *mediator.Mediator) http.Handler {
	r := chi.NewRouter()

	r.Get("/", u.listUsers(med))
	r.Get("/health", HealthHandler(u.Ready))
	r.Get("/{id}", u.readUser(med))
	r.Post("/auth", u.authenticate(med))
	r.Post("/verifysession", u.verifySession)
	r.Post("/revokesession", u.revokeSession)

	return r
}

// Mediator subscribers

func (u *UserRouter) handleList(ctx context.Context, _ any) (any, error) {
	return u.users.ListUsers(ctx)
}

func (u *UserRouter) handleRead(ctx context.Context, payload any) (any, error) {
	id, ok := payload.(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidRequest)
	}
	return u.users.GetUser(ctx, id)
}

func (u *UserRouter) handleAuth(ctx context.Context, payload any) (any, error) {
	creds, ok := payload.(domain.Credentials)
	if !ok {
		return nil, fmt.Errorf("%w: credentials required", ErrInvalidRequest)
	}

	user, token, expiresAt, err := u.users.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	profile, err := u.profile(user)
	if err != nil {
		return nil, err
	}
	return &domain.Session{Token: token, ExpiresAt: expiresAt, Profile: profile}, nil
}

// HTTP handlers

func (u *UserRouter) listUsers(med *mediator.Mediator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := med.Request(r.Context(), TopicUsersList, nil)
		if err != nil {
			web.Error(w, r, u.statusError(err))
			return
		}

		users, ok := result.([]domain.User)
		if !ok {
			web.Error(w, r, fmt.Errorf("unexpected reply %T on %s", result, TopicUsersList))
			return
		}
		profiles := make([]map[string]any, 0, len(users))
		for i := range users {
			profile, err := u.profile(&users[i])
			if err != nil {
				web.Error(w, r, err)
				return
			}
			profiles = append(profiles, profile)
		}
		web.WriteJSON(w, http.StatusOK, profiles)
	}
}

func (u *UserRouter) readUser(med *mediator.Mediator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := med.Request(r.Context(), TopicUsersRead, chi.URLParam(r, "id"))
		if err != nil {
			web.Error(w, r, u.statusError(err))
			return
		}

		user, ok := result.(*domain.User)
		if !ok {
			web.Error(w, r, fmt.Errorf("unexpected reply %T on %s", result, TopicUsersRead))
			return
		}

		profile, err := u.profile(user)
		if err != nil {
			web.Error(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, profile)
	}
}

func (u *UserRouter) authenticate(med *mediator.Mediator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds domain.Credentials
		if err := decodeBody(r, &creds); err != nil {
			web.Error(w, r, web.NewStatusError(http.StatusBadRequest, ErrInvalidRequest))
			return
		}

		result, err := med.Request(r.Context(), TopicUsersAuth, creds)
		if err != nil {
			web.Error(w, r, u.statusError(err))
			return
		}
		web.WriteJSON(w, http.StatusOK, result)
	}
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (u *UserRouter) verifySession(w http.ResponseWriter, r *http.Request) {
	token, err := sessionToken(r)
	if err != nil {
		web.Error(w, r, web.NewStatusError(http.StatusBadRequest, err))
		return
	}

	user, err := u.users.VerifySession(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			web.WriteJSON(w, http.StatusOK, map[string]any{"valid": false})
			return
		}
		web.Error(w, r, err)
		return
	}

	profile, err := u.profile(user)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"valid": true, "profile": profile})
}

func (u *UserRouter) revokeSession(w http.ResponseWriter, r *http.Request) {
	token, err := sessionToken(r)
	if err != nil {
		web.Error(w, r, web.NewStatusError(http.StatusBadRequest, err))
		return
	}

	if err := u.users.RevokeSession(r.Context(), token); err != nil {
		web.Error(w, r, u.statusError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// profile converts user to its client representation without excluded fields
func (u *UserRouter) profile(user *domain.User) (map[string]any, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}

	var profile map[string]any
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	for _, field := range u.exclusions {
		delete(profile, field)
	}
	return profile, nil
}

func (u *UserRouter) statusError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return web.NewStatusError(http.StatusNotFound, err)
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidSession):
		return web.NewStatusError(http.StatusUnauthorized, err)
	case errors.Is(err, ErrInvalidRequest):
		return web.NewStatusError(http.StatusBadRequest, err)
	case errors.Is(err, mediator.ErrNoSubscriber):
		return web.NewStatusError(http.StatusServiceUnavailable, err)
	case errors.Is(err, auth.ErrCannotIssue):
		// RS256 deployments only verify tokens issued elsewhere
		return web.NewStatusError(http.StatusNotImplemented, err)
	default:
		return err
	}
}

// sessionToken reads the token from the body, falling back to the
// Authorization header
func sessionToken(r *http.Request) (string, error) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return "", ErrInvalidRequest
	}
	if req.Token != "" {
		return req.Token, nil
	}
	if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("%w: token required", ErrInvalidRequest)
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func withPassword(exclusions []string) []string {
	list := []string{config.PasswordField}
	for _, field := range exclusions {
		if field != config.PasswordField {
			list = append(list, field)
		}
	}
	return list
}

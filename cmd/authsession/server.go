package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wrale/authsession/cmd/authsession/handlers/device"
	"github.com/wrale/authsession/cmd/authsession/handlers/health"
	"github.com/wrale/authsession/cmd/authsession/handlers/login"
	"github.com/wrale/authsession/cmd/authsession/handlers/provider"
	"github.com/wrale/authsession/cmd/authsession/handlers/status"
	"github.com/wrale/authsession/cmd/authsession/handlers/window"
)

// requestSlack is added to the longest synchronous backend exchange
const requestSlack = 5 * time.Second

// requestTimeout bounds synchronous handlers. Credential login is the longest:
// it starts a device code, authorizes it and may then spend the whole
// fallback poll budget.
func requestTimeout(cfg Config) time.Duration {
	t := cfg.Timeouts
	login := t.Start + t.Authorize +
		time.Duration(cfg.CredentialPollAttempts)*(t.Poll+cfg.CredentialPollInterval)
	return max(login, t.Register) + requestSlack
}

type server struct {
	app    *app
	router *chi.Mux
}

func newServer(a *app) *server {
	s := &server{
		app:    a,
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(a.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(requestTimeout(a.cfg)))

	s.routes()
	return s
}

func (s *server) routes() {
	m := s.app.manager

	s.router.Method(http.MethodGet, "/health", health.New().
		WithVersion(Version).
		WithComponent("session_store", s.app.keeper).
		WithComponent("provider_api_key", s.app.credential))

	s.router.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodGet, "/status", status.New(m, s.app.log))

		creds := login.New(m)
		r.Post("/login", creds.Login)
		r.Post("/register", creds.Register)
		r.Post("/logout", creds.Logout)

		dev := device.New(m)
		r.Post("/device", dev.Start)
		r.Get("/device", dev.Progress)
		r.Delete("/device", dev.Cancel)

		var windows provider.WindowLocator
		if s.app.relay != nil {
			windows = s.app.relay
		}
		prov := provider.New(m, windows)
		r.Post("/provider", prov.Start)
		r.Get("/provider", prov.Progress)
		r.Delete("/provider", prov.Cancel)
	})

	if s.app.relay != nil {
		win := window.New(s.app.relay)
		s.router.Post("/popup/{id}/message", win.Message)
		s.router.Post("/popup/{id}/closed", win.Closed)
	}
}

// requestLogger logs each request through log
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wrale/authsession/internal/auth"
	"github.com/wrale/authsession/internal/backend"
	"github.com/wrale/authsession/internal/dependent"
	"github.com/wrale/authsession/internal/deviceflow"
	"github.com/wrale/authsession/internal/popup"
	"github.com/wrale/authsession/internal/session"
)

// app holds the components shared by every command
type app struct {
	cfg        Config
	log        zerolog.Logger
	redis      *redis.Client
	keeper     *session.Keeper
	credential dependent.Credential
	relay      *popup.Relay
	manager    *auth.Manager
}

// newApp wires the components. relayed selects a Relay opener whose windows
// report events over HTTP; otherwise windows are detached and resolved by polling.
func newApp(ctx context.Context, cfg Config, log zerolog.Logger, relayed bool) (*app, error) {
	a := &app{cfg: cfg, log: log}

	client, err := backend.NewClient(cfg.BackendURL,
		backend.WithTimeouts(cfg.Timeouts),
		backend.WithLogger(log.With().Str("component", "backend").Logger()),
	)
	if err != nil {
		return nil, err
	}

	var store session.Store = session.NewMemoryStore()
	a.credential = dependent.Nop{}
	if cfg.Store == StoreRedis {
		a.redis, err = newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		store = session.NewRedisStore(a.redis, cfg.SessionKey)
		a.credential = dependent.NewRedisCredential(a.redis, cfg.CredentialKey)
	}
	a.keeper = session.NewKeeper(store)

	launch := popup.Launcher(func(ctx context.Context, id, url string) error {
		log.Info().Str("window", id).Str("url", url).Msg("open this page to continue login")
		return nil
	})
	if cfg.PopupBrowser || !relayed {
		launch = popup.BrowserLauncher
	}

	var opener popup.Opener = popup.DetachedOpener(launch)
	if relayed {
		a.relay = popup.NewRelay(launch, log.With().Str("component", "relay").Logger())
		opener = a.relay
	}

	a.manager = auth.NewManager(a.keeper, client,
		auth.WithLogger(log),
		auth.WithDependent(a.credential),
		auth.WithOpener(opener),
		auth.WithSchedules(auth.Schedules{
			Device: deviceflow.Schedule{Interval: cfg.DevicePollInterval, Immediate: true},
			Credential: deviceflow.Schedule{
				Interval:    cfg.CredentialPollInterval,
				MaxAttempts: cfg.CredentialPollAttempts,
			},
			Provider: deviceflow.Schedule{
				Interval:    cfg.ProviderPollInterval,
				MaxAttempts: cfg.ProviderPollAttempts,
				Immediate:   true,
			},
		}),
		auth.WithPopupTiming(cfg.PopupCheckInterval, cfg.PopupTimeout),
	)
	return a, nil
}

// newRedisClient connects to url, failing if Redis does not answer within 5s
func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Close releases the Redis connection, if any
func (a *app) Close() error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Close(); err != nil {
		return fmt.Errorf("closing redis connection: %w", err)
	}
	return nil
}

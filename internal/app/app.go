package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/auth"
	"github.com/vovakirdan/directchat/internal/config"
	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/media"
	"github.com/vovakirdan/directchat/internal/service/messages"
	"github.com/vovakirdan/directchat/internal/store"
	"github.com/vovakirdan/directchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/directchat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	images, err := newImages(ctx, cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}

	hub := core.NewHub(nil, logger)
	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:         hub,
		Verifier:    auth.NewVerifier(jwtConfig, st),
		AuthService: auth.NewService(st, jwtConfig, images),
		Store:       st,
		Messages:    messages.New(st, images, hub),
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// newImages builds the image resolver. Without S3 settings only image URLs are accepted.
func newImages(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*media.Images, error) {
	if !cfg.S3Enabled() {
		logger.Info().Msg("object storage not configured, image uploads disabled")
		return media.NewImages(nil, cfg.MaxMessageBytes), nil
	}

	uploader, err := media.NewS3Uploader(ctx, media.S3Config{
		Bucket:          cfg.S3Bucket,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	logger.Info().Str("bucket", cfg.S3Bucket).Str("endpoint", cfg.S3Endpoint).Msg("object storage initialized")
	return media.NewImages(uploader, cfg.MaxMessageBytes), nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		<-a.hub.Stopped()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Live connections are hijacked, so the hub closes them; Shutdown only drains requests.
		stopHub()
		select {
		case <-a.hub.Stopped():
		case <-shutdownCtx.Done():
			a.log.Warn().Msg("hub did not stop before shutdown timeout")
		}

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

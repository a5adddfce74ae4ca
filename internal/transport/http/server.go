package http

import (
	stdhttp "net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/auth"
	"github.com/vovakirdan/directchat/internal/config"
	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/log"
	"github.com/vovakirdan/directchat/internal/service/messages"
	"github.com/vovakirdan/directchat/internal/store"
)

// Deps are the collaborators the HTTP layer routes to.
type Deps struct {
	Hub         *core.Hub
	Verifier    *auth.Verifier
	AuthService *auth.Service
	Store       store.Store
	Messages    *messages.Service
}

// NewServer builds the HTTP server: REST API, live connection endpoint and health check.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	httpLog := log.Component(logger, "http")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(httpLog))

	router.GET("/health", healthHandler)

	limiter := newHandshakeLimiter(cfg.HandshakeRate, cfg.HandshakeBurst)
	ws := NewWSHandler(deps.Hub, deps.Verifier, deps.Messages, WSOptions{
		CookieName:      cfg.CookieName,
		VerifyTimeout:   cfg.VerifyTimeout,
		MaxMessageBytes: cfg.MaxMessageBytes,
		EventBuffer:     cfg.EventBuffer,
		OriginPatterns:  originPatterns(cfg.ClientURL),
		Limiter:         limiter,
	}, logger)

	api := router.Group("/api")
	requireAuth := AuthMiddleware(deps.Verifier, cfg.CookieName, httpLog)

	authHandlers := NewAPIHandlers(deps.AuthService, deps.Store, cfg.CookieName, cfg.CookieSecure, httpLog)
	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandlers.Signup)
	authGroup.POST("/login", authHandlers.Login)
	authGroup.POST("/logout", authHandlers.Logout)
	authGroup.GET("/check", requireAuth, authHandlers.Check)
	authGroup.PUT("/update-profile", requireAuth, authHandlers.UpdateProfile)

	msgHandlers := NewMessageHandlers(deps.Messages, httpLog)
	msgGroup := api.Group("/messages", requireAuth)
	msgGroup.GET("/contacts", msgHandlers.Contacts)
	msgGroup.GET("/chats", msgHandlers.Chats)
	msgGroup.GET("/:id", msgHandlers.History)
	msgGroup.POST("/send/:id", msgHandlers.Send)

	handler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.ClientURL),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(router)

	// The live endpoint hijacks the connection, so it stays outside gin's response writer.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", handler)

	srv := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	stop := make(chan struct{})
	limiter.startCleanup(3*time.Minute, stop)
	srv.RegisterOnShutdown(func() { close(stop) })

	return srv
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

func allowedOrigins(clientURL string) []string {
	if clientURL == "" {
		return nil
	}
	return []string{clientURL}
}

// originPatterns turns the client URL into the host pattern the websocket accept check expects.
func originPatterns(clientURL string) []string {
	u, err := url.Parse(clientURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

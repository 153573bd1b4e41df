package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"artistsync/internal/session"
)

// RouterDeps collects the handlers and settings the router mounts
type RouterDeps struct {
	Auth    *AuthHandler
	Artists *ArtistHandler
	Songs   *SongHandler
	Admin   *AdminHandler
	Codec   *session.TokenCodec
	// CookieTTL bounds credentials built from a raw cookie header
	CookieTTL time.Duration
}

// NewRouter builds the gin engine with every API route registered
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	RegisterRoutes(r, deps)
	return r
}

// RegisterRoutes mounts the API on r
func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	r.GET("/health", deps.Admin.Health)
	r.GET("/metrics", deps.Admin.Metrics())

	api := r.Group("/api")
	api.Use(CredentialMiddleware(deps.Codec, deps.CookieTTL))
	{
		api.GET("/auth/qr", deps.Auth.GetQR)
		api.GET("/auth/check", deps.Auth.CheckQR)
		api.GET("/user", RequireCredential(), deps.Auth.GetUser)

		api.GET("/artist/search", deps.Artists.SearchArtists)
		api.GET("/artist/top-songs", RequireCredential(), deps.Artists.TopSongs)
		api.POST("/artist/sync", deps.Artists.SyncArtist)

		api.GET("/search", deps.Songs.Search)
		api.POST("/sync", deps.Songs.Sync)
	}
}

// RequestLogger logs one line per request through slog
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"clientIP", c.ClientIP(),
		)
	}
}

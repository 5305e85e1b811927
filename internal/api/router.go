package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/homewatch/internal/api/handlers"
	"github.com/your-org/homewatch/internal/api/ws"
	"github.com/your-org/homewatch/internal/auth"
	"github.com/your-org/homewatch/pkg/dto"
)

// Store is everything the dashboard reads from Postgres.
type Store interface {
	handlers.EventReader
	handlers.StatsReader
	handlers.HeartbeatReader
}

type RouterConfig struct {
	APIKey      string
	Store       Store
	Archive     handlers.ObjectOpener // optional
	ArchivePing handlers.Pinger       // optional
	Hub         *ws.Hub               // optional
	Media       handlers.MediaConfig
	System      handlers.SystemConfig
	PerPage     int
	MaxPerPage  int
	Location    *time.Location
	Now         func() time.Time
}

// NewRouter registers the read-only dashboard API. Only GET routes exist.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Range", "X-API-Key"},
		ExposeHeaders:   []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		MaxAge:          12 * time.Hour,
	}))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.Error("not found"))
	})
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.Error("method not allowed"))
	})

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Store, cfg.ArchivePing, cfg.System, cfg.Now)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := r.Group("/")
	authed.Use(auth.APIKeyMiddleware(cfg.APIKey))

	eventH := handlers.NewEventHandler(cfg.Store, cfg.PerPage, cfg.MaxPerPage, cfg.Location)
	authed.GET("/api/logs", eventH.Logs)
	authed.GET("/api/search", eventH.Search)

	statsH := handlers.NewStatsHandler(cfg.Store, cfg.Now)
	authed.GET("/api/stats", statsH.Get)
	authed.GET("/api/system/status", systemH.Status)

	mediaH := handlers.NewMediaHandler(cfg.Media, cfg.Archive)
	authed.GET("/image/:name", mediaH.Image)
	authed.GET("/video/:name", mediaH.Video)
	authed.GET("/api/live", mediaH.Live)

	if cfg.Hub != nil {
		authed.GET("/api/ws", cfg.Hub.HandleWS)
	}

	return r
}

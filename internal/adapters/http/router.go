package http

import (
	"context"

	"github.com/colonycast/hub/internal/adapters/control"
	"github.com/colonycast/hub/internal/adapters/events"
	"github.com/colonycast/hub/internal/adapters/relay"
	"github.com/colonycast/hub/internal/app"
	"github.com/colonycast/hub/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ClientTokenMiddleware mints a stable per-browser token used as the viewer
// connection identity on the event and media channels.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, hub *app.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ColonycastSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	relayCtl := relay.NewController(hub, cfg.ReadLimit, cfg.HeartbeatEvery)
	controlCtl := control.NewController(hub, cfg.ReadLimit)
	eventsCtl := events.NewController(hub)

	ws := r.Group("/ws")
	ws.GET("/produce", func(c *gin.Context) { relayCtl.HandleProduce(ctx, c) })
	ws.GET("/watch", func(c *gin.Context) { relayCtl.HandleWatch(ctx, c) })
	ws.GET("/control", func(c *gin.Context) { controlCtl.HandleControl(ctx, c) })
	ws.GET("/events", func(c *gin.Context) { eventsCtl.HandleEvents(ctx, c) })

	api := NewAPI(hub)
	api.Register(r.Group("/api"))

	return r
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/piwi3910/camweave/internal/handlers"
	"github.com/piwi3910/camweave/internal/observability"
	"github.com/piwi3910/camweave/internal/storage"
)

// setupRoutes registers the operational endpoints and the CAMARA API
// route groups. Paths follow the published CAMARA API definitions:
// each API family carries its own version segment.
func (s *Server) setupRoutes() {
	// Operational endpoints
	s.router.GET("/health", gin.WrapF(s.healthCheck.HealthHandler()))
	s.router.GET("/ready", gin.WrapF(s.healthCheck.ReadinessHandler()))
	s.router.GET("/live", gin.WrapF(observability.LivenessHandler()))

	if s.config.Observability.Metrics.Enabled {
		s.router.GET(s.config.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, notFoundBody())
	})

	s.setupQoDRoutes()
	s.setupLocationRoutes()
	s.setupDeviceStatusRoutes()
	s.setupSimSwapRoutes()
	s.setupTrafficInfluenceRoutes()
}

func (s *Server) setupQoDRoutes() {
	h := handlers.NewQoDHandler(s.deps.Store, s.deps.Cores, s.logger)

	v1 := s.router.Group("/quality-on-demand/v1")
	v1.POST("/sessions", h.CreateSession)
	v1.GET("/sessions/:sessionId", h.GetSession)
	v1.DELETE("/sessions/:sessionId", h.DeleteSession)
	v1.POST("/sessions/:sessionId/extend", h.ExtendSession)
	v1.POST("/retrieve-sessions", h.RetrieveSessions)
}

func (s *Server) setupLocationRoutes() {
	h := handlers.NewLocationHandler(s.deps.Cores, s.logger)

	s.router.POST("/location-retrieval/v0/retrieve", h.Retrieve)
}

func (s *Server) setupDeviceStatusRoutes() {
	h := handlers.NewDeviceStatusHandler(&handlers.DeviceStatusConfig{
		Store:     s.deps.Store,
		Cores:     s.deps.Cores,
		Publisher: s.deps.Publisher,
		Logger:    s.logger,
		HomeMcc:   s.config.Network.HomeMcc,
		HomeMnc:   s.config.Network.HomeMnc,
	})

	reach := s.router.Group("/device-status/reachability/v1")
	reach.POST("/retrieve", h.RetrieveReachability)
	reach.POST("/subscriptions", h.CreateSubscription(storage.SubscriptionReachability))
	reach.GET("/subscriptions", h.ListSubscriptions(storage.SubscriptionReachability))
	reach.GET("/subscriptions/:subscriptionId", h.GetSubscription(storage.SubscriptionReachability))
	reach.DELETE("/subscriptions/:subscriptionId", h.DeleteSubscription(storage.SubscriptionReachability))

	roam := s.router.Group("/device-status/roaming/v1")
	roam.POST("/retrieve", h.RetrieveRoaming)
	roam.POST("/subscriptions", h.CreateSubscription(storage.SubscriptionRoaming))
	roam.GET("/subscriptions", h.ListSubscriptions(storage.SubscriptionRoaming))
	roam.GET("/subscriptions/:subscriptionId", h.GetSubscription(storage.SubscriptionRoaming))
	roam.DELETE("/subscriptions/:subscriptionId", h.DeleteSubscription(storage.SubscriptionRoaming))
}

func (s *Server) setupSimSwapRoutes() {
	h := handlers.NewSimSwapHandler(s.deps.Store, s.logger, s.config.SimSwap.MonitoredDays)

	vwip := s.router.Group("/sim-swap/vwip")
	vwip.POST("/check", h.Check)
	vwip.POST("/retrieve-date", h.RetrieveDate)
	vwip.POST("/simulate-swap", h.SimulateSwap)
}

func (s *Server) setupTrafficInfluenceRoutes() {
	h := handlers.NewTrafficInfluenceHandler(s.deps.Store, s.deps.Cores, s.logger)

	vwip := s.router.Group("/traffic-influence/vwip")
	vwip.GET("/traffic-influences", h.List)
	vwip.POST("/traffic-influences", h.Create)
	vwip.POST("/traffic-influence-devices", h.CreateForDevice)
	vwip.GET("/traffic-influences/:id", h.Get)
	vwip.PATCH("/traffic-influences/:id", h.Patch)
	vwip.DELETE("/traffic-influences/:id", h.Delete)
}

// notFoundBody keeps 404 responses in the CAMARA error shape even for
// unmatched paths.
func notFoundBody() gin.H {
	return gin.H{
		"status":  http.StatusNotFound,
		"code":    "NOT_FOUND",
		"message": "The specified resource is not found",
	}
}

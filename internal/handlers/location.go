package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/registry"
)

// LocationHandler handles the Location Retrieval endpoint.
type LocationHandler struct {
	Cores  *registry.Registry
	Logger *zap.Logger
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(cores *registry.Registry, logger *zap.Logger) *LocationHandler {
	if cores == nil {
		panic("registry cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &LocationHandler{Cores: cores, Logger: logger}
}

// Retrieve handles POST /location-retrieval/v0/retrieve.
//
// The core reports the location's age in whole minutes; lastLocationTime
// is the report time shifted back by that age.
func (h *LocationHandler) Retrieve(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.RetrieveLocation
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}

	req.Device.ApplyPrivateAddressDefault()

	core, coreName, cerr := selectCore(c, h.Cores, adapter.CapabilityLocation)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	report, err := core.RetrieveLocation(ctx, req.Device, req.MaxAge)
	if err != nil {
		h.Logger.Error("location retrieval failed",
			zap.String("core", coreName),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	lastLocationTime := report.EventTime.Add(-time.Duration(report.AgeMinutes) * time.Minute)

	c.JSON(http.StatusOK, camara.Location{
		LastLocationTime: lastLocationTime,
		Area:             report.Area,
		Device:           req.Device.SingleIdentifier(),
	})
}

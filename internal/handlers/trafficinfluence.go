package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/registry"
	"github.com/piwi3910/camweave/internal/storage"
)

// TrafficInfluenceHandler handles the Traffic Influence resource endpoints.
type TrafficInfluenceHandler struct {
	Store  storage.Store
	Cores  *registry.Registry
	Logger *zap.Logger
}

// NewTrafficInfluenceHandler creates a new TrafficInfluenceHandler.
func NewTrafficInfluenceHandler(store storage.Store, cores *registry.Registry, logger *zap.Logger) *TrafficInfluenceHandler {
	if store == nil {
		panic("storage cannot be nil")
	}
	if cores == nil {
		panic("registry cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &TrafficInfluenceHandler{Store: store, Cores: cores, Logger: logger}
}

// List handles GET /traffic-influence/vwip/traffic-influences.
// An appId query narrows the listing; device identification never appears
// in a rendered resource.
func (h *TrafficInfluenceHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	appID := c.Query("appId")

	recs, err := h.Store.ListInfluences(ctx)
	if err != nil {
		writeError(c, storeError(err))
		return
	}

	influences := make([]*camara.TrafficInfluence, 0, len(recs))
	for _, rec := range recs {
		if appID != "" && rec.AppID != appID {
			continue
		}
		influences = append(influences, rec.Sanitized())
	}
	c.JSON(http.StatusOK, influences)
}

// Create handles POST /traffic-influence/vwip/traffic-influences.
func (h *TrafficInfluenceHandler) Create(c *gin.Context) {
	h.create(c, false)
}

// CreateForDevice handles POST /traffic-influence/vwip/traffic-influence-devices.
// The device-scoped endpoint requires a device identifier.
func (h *TrafficInfluenceHandler) CreateForDevice(c *gin.Context) {
	h.create(c, true)
}

func (h *TrafficInfluenceHandler) create(c *gin.Context, requireDevice bool) {
	ctx := c.Request.Context()

	var req camara.TrafficInfluence
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := req.Validate(requireDevice); err != nil {
		writeError(c, err)
		return
	}

	req.Device.ApplyPrivateAddressDefault()

	core, coreName, cerr := selectCore(c, h.Cores, adapter.CapabilityTrafficInfluence)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	req.TrafficInfluenceID = uuid.New().String()

	result, err := core.CreateTrafficInfluence(ctx, &req)
	if err != nil {
		h.Logger.Error("traffic influence dispatch failed",
			zap.String("core", coreName),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	now := time.Now().UTC()
	req.State = camara.TIStateActive
	rec := &storage.InfluenceRecord{
		TrafficInfluence:   req,
		Core:               coreName,
		CoreSubscriptionID: result.SubscriptionID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := h.Store.CreateInfluence(ctx, rec); err != nil {
		writeError(c, storeError(err))
		return
	}

	h.Logger.Info("traffic influence created",
		zap.String("traffic_influence_id", rec.TrafficInfluenceID),
		zap.String("app_id", rec.AppID),
		zap.String("core", coreName),
	)
	c.Header("Location", "/traffic-influence/vwip/traffic-influences/"+rec.TrafficInfluenceID)
	c.JSON(http.StatusCreated, rec.Sanitized())
}

// Get handles GET /traffic-influence/vwip/traffic-influences/:id.
func (h *TrafficInfluenceHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := h.Store.GetInfluence(ctx, c.Param("id"))
	if err != nil {
		writeError(c, storeError(err))
		return
	}
	c.JSON(http.StatusOK, rec.Sanitized())
}

// Patch handles PATCH /traffic-influence/vwip/traffic-influences/:id.
// Only an active resource accepts changes; everything else answers 409
// DENIED_WAIT.
func (h *TrafficInfluenceHandler) Patch(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := h.Store.GetInfluence(ctx, c.Param("id"))
	if err != nil {
		writeError(c, storeError(err))
		return
	}
	if rec.State != camara.TIStateActive {
		writeError(c, camara.DeniedWait("The resource is not active; retry once the pending transition completes"))
		return
	}

	var patch camara.TrafficInfluence
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := patch.Device.Validate(); err != nil {
		writeError(c, err)
		return
	}

	if patch.EdgeCloudRegion != "" {
		rec.EdgeCloudRegion = patch.EdgeCloudRegion
	}
	if patch.EdgeCloudZoneID != "" {
		rec.EdgeCloudZoneID = patch.EdgeCloudZoneID
	}
	if patch.NotificationSink != "" {
		rec.NotificationSink = patch.NotificationSink
	}
	if patch.SourceTrafficFilters != nil {
		rec.SourceTrafficFilters = patch.SourceTrafficFilters
	}
	if patch.Device != nil {
		patch.Device.ApplyPrivateAddressDefault()
		rec.Device = patch.Device
	}

	core, cerr := coreByName(h.Cores, rec.Core)
	if cerr != nil {
		writeError(c, cerr)
		return
	}
	if err := core.UpdateTrafficInfluence(ctx, rec.CoreSubscriptionID, &rec.TrafficInfluence); err != nil {
		h.Logger.Error("traffic influence update failed",
			zap.String("traffic_influence_id", rec.TrafficInfluenceID),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	rec.UpdatedAt = time.Now().UTC()
	if err := h.Store.UpdateInfluence(ctx, rec); err != nil {
		writeError(c, storeError(err))
		return
	}

	c.JSON(http.StatusOK, rec.Sanitized())
}

// Delete handles DELETE /traffic-influence/vwip/traffic-influences/:id.
// The resource passes through "deletion in progress" and lands on
// "deleted"; the response is 202 with an empty JSON body.
func (h *TrafficInfluenceHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := h.Store.GetInfluence(ctx, c.Param("id"))
	if err != nil {
		writeError(c, storeError(err))
		return
	}

	rec.State = camara.TIStateDeletionInProgress
	rec.UpdatedAt = time.Now().UTC()
	if err := h.Store.UpdateInfluence(ctx, rec); err != nil {
		writeError(c, storeError(err))
		return
	}

	if rec.CoreSubscriptionID != "" {
		core, cerr := coreByName(h.Cores, rec.Core)
		if cerr != nil {
			writeError(c, cerr)
			return
		}
		if err := core.DeleteTrafficInfluence(ctx, rec.CoreSubscriptionID); err != nil {
			h.Logger.Error("traffic influence teardown failed",
				zap.String("traffic_influence_id", rec.TrafficInfluenceID),
				zap.Error(err),
			)
			writeError(c, err)
			return
		}
	}

	rec.State = camara.TIStateDeleted
	rec.UpdatedAt = time.Now().UTC()
	if err := h.Store.UpdateInfluence(ctx, rec); err != nil {
		writeError(c, storeError(err))
		return
	}

	h.Logger.Info("traffic influence deleted",
		zap.String("traffic_influence_id", rec.TrafficInfluenceID),
	)
	c.JSON(http.StatusAccepted, gin.H{})
}

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

// DefaultQoDSink receives session notifications when the caller supplies
// no sink of their own.
const DefaultQoDSink = "https://example.com/notifications"

// QoDHandler handles Quality-on-Demand session endpoints.
type QoDHandler struct {
	Store  storage.Store
	Cores  *registry.Registry
	Logger *zap.Logger
}

// NewQoDHandler creates a new QoDHandler.
func NewQoDHandler(store storage.Store, cores *registry.Registry, logger *zap.Logger) *QoDHandler {
	if store == nil {
		panic("storage cannot be nil")
	}
	if cores == nil {
		panic("registry cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &QoDHandler{Store: store, Cores: cores, Logger: logger}
}

// CreateSession handles POST /quality-on-demand/v1/sessions.
//
// The session record is created only after the downstream QoS subscription
// succeeds; a rejected dispatch leaves no visible session.
func (h *QoDHandler) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.CreateSession
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}

	req.Device.ApplyPrivateAddressDefault()
	if req.Sink == "" {
		req.Sink = DefaultQoDSink
	}

	core, coreName, cerr := selectCore(c, h.Cores, adapter.CapabilityQoD)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	created, err := core.CreateQoDSession(ctx, &adapter.QoDSession{
		Device:     req.Device,
		ServerIPv4: req.ApplicationServer.IPv4Address,
		QosProfile: req.QosProfile,
		Duration:   req.Duration,
		Sink:       req.Sink,
	})
	if err != nil {
		h.Logger.Error("qod session dispatch failed",
			zap.String("core", coreName),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	now := time.Now().UTC()
	rec := &storage.SessionRecord{
		SessionInfo: camara.SessionInfo{
			SessionID:              uuid.New().String(),
			Device:                 req.Device,
			ApplicationServer:      req.ApplicationServer,
			DevicePorts:            req.DevicePorts,
			ApplicationServerPorts: req.ApplicationServerPorts,
			QosProfile:             req.QosProfile,
			Sink:                   req.Sink,
			Duration:               req.Duration,
			StartedAt:              now,
			ExpiresAt:              now.Add(time.Duration(req.Duration) * time.Second),
			QosStatus:              camara.QosStatusAvailable,
		},
		Core:               coreName,
		CoreSubscriptionID: created.SubscriptionID,
		ServerIPv4:         req.ApplicationServer.IPv4Address,
	}

	if err := h.Store.CreateSession(ctx, rec); err != nil {
		h.Logger.Error("failed to persist qod session",
			zap.String("session_id", rec.SessionID),
			zap.Error(err),
		)
		writeError(c, storeError(err))
		return
	}

	h.Logger.Info("qod session created",
		zap.String("session_id", rec.SessionID),
		zap.String("core", coreName),
		zap.String("qos_profile", rec.QosProfile),
		zap.Int("duration", rec.Duration),
	)
	c.JSON(http.StatusCreated, rec.SessionInfo)
}

// GetSession handles GET /quality-on-demand/v1/sessions/:sessionId.
func (h *QoDHandler) GetSession(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := h.Store.GetSession(ctx, c.Param("sessionId"))
	if err != nil {
		writeError(c, storeError(err))
		return
	}
	c.JSON(http.StatusOK, rec.SessionInfo)
}

// DeleteSession handles DELETE /quality-on-demand/v1/sessions/:sessionId.
//
// The downstream subscription is torn down first; the local record is then
// flipped to UNAVAILABLE / DELETE_REQUESTED rather than removed, so the
// terminal-state guard can reject a concurrent extend.
func (h *QoDHandler) DeleteSession(c *gin.Context) {
	ctx := c.Request.Context()

	rec, err := h.Store.GetSession(ctx, c.Param("sessionId"))
	if err != nil {
		writeError(c, storeError(err))
		return
	}

	core, cerr := coreByName(h.Cores, rec.Core)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	if err := core.DeleteQoDSession(ctx, rec.CoreSubscriptionID); err != nil {
		h.Logger.Error("qod session teardown failed",
			zap.String("session_id", rec.SessionID),
			zap.String("core", rec.Core),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	rec.QosStatus = camara.QosStatusUnavailable
	rec.StatusInfo = camara.StatusInfoDeleteRequested
	if err := h.Store.UpdateSession(ctx, rec); err != nil {
		writeError(c, storeError(err))
		return
	}

	h.Logger.Info("qod session deleted",
		zap.String("session_id", rec.SessionID),
		zap.String("core", rec.Core),
	)
	c.Status(http.StatusNoContent)
}

// ExtendSession handles POST /quality-on-demand/v1/sessions/:sessionId/extend.
//
// Extending a session that is no longer AVAILABLE, including one deleted
// while the extend was in flight, returns 409.
func (h *QoDHandler) ExtendSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.ExtendSessionDuration
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}

	rec, err := h.Store.GetSession(ctx, c.Param("sessionId"))
	if err != nil {
		writeError(c, storeError(err))
		return
	}
	if rec.QosStatus != camara.QosStatusAvailable {
		writeError(c, camara.ExtensionNotAllowed("The session is not in the AVAILABLE state"))
		return
	}

	core, cerr := coreByName(h.Cores, rec.Core)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	newDuration := rec.Duration + req.RequestedAdditionalDuration
	err = core.ExtendQoDSession(ctx, rec.CoreSubscriptionID, &adapter.QoDSession{
		Device:     rec.Device,
		ServerIPv4: rec.ServerIPv4,
		QosProfile: rec.QosProfile,
		Duration:   newDuration,
		Sink:       rec.Sink,
	})
	if err != nil {
		h.Logger.Error("qod session extend failed",
			zap.String("session_id", rec.SessionID),
			zap.String("core", rec.Core),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	rec.Duration = newDuration
	rec.ExpiresAt = rec.StartedAt.Add(time.Duration(newDuration) * time.Second)
	if err := h.Store.UpdateSession(ctx, rec); err != nil {
		writeError(c, storeError(err))
		return
	}

	h.Logger.Info("qod session extended",
		zap.String("session_id", rec.SessionID),
		zap.Int("duration", rec.Duration),
	)
	c.JSON(http.StatusOK, rec.SessionInfo)
}

// RetrieveSessions handles POST /quality-on-demand/v1/retrieve-sessions.
// It returns the stored sessions belonging to the given device. Records
// already flipped to UNAVAILABLE stay in the registry for the
// terminal-state guard but are not listed back to the device.
func (h *QoDHandler) RetrieveSessions(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.RetrieveSessions
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}

	all, err := h.Store.ListSessions(ctx)
	if err != nil {
		writeError(c, storeError(err))
		return
	}

	sessions := make([]camara.SessionInfo, 0)
	for _, rec := range all {
		if rec.QosStatus == camara.QosStatusUnavailable {
			continue
		}
		if sameDevice(req.Device, rec.Device) {
			sessions = append(sessions, rec.SessionInfo)
		}
	}
	c.JSON(http.StatusOK, sessions)
}

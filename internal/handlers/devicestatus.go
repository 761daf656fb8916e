package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/events"
	"github.com/piwi3910/camweave/internal/registry"
	"github.com/piwi3910/camweave/internal/storage"
)

// DefaultSubscriptionTTL applies when a subscription request carries no
// expiry time.
const DefaultSubscriptionTTL = 24 * time.Hour

// DeviceStatusHandler handles the Device Status retrieval and subscription
// endpoints for both the reachability and roaming families.
type DeviceStatusHandler struct {
	Store     storage.Store
	Cores     *registry.Registry
	Publisher Publisher
	Logger    *zap.Logger

	// HomeMcc and HomeMnc identify the home network for roaming answers.
	HomeMcc string
	HomeMnc string
}

// DeviceStatusConfig holds configuration for creating a DeviceStatusHandler.
type DeviceStatusConfig struct {
	Store     storage.Store
	Cores     *registry.Registry
	Publisher Publisher
	Logger    *zap.Logger
	HomeMcc   string
	HomeMnc   string
}

// NewDeviceStatusHandler creates a new DeviceStatusHandler.
func NewDeviceStatusHandler(cfg *DeviceStatusConfig) *DeviceStatusHandler {
	if cfg == nil || cfg.Store == nil {
		panic("storage cannot be nil")
	}
	if cfg.Cores == nil {
		panic("registry cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}

	homeMcc := cfg.HomeMcc
	if homeMcc == "" {
		homeMcc = "001"
	}
	homeMnc := cfg.HomeMnc
	if homeMnc == "" {
		homeMnc = "01"
	}

	return &DeviceStatusHandler{
		Store:     cfg.Store,
		Cores:     cfg.Cores,
		Publisher: cfg.Publisher,
		Logger:    cfg.Logger,
		HomeMcc:   homeMcc,
		HomeMnc:   homeMnc,
	}
}

// RetrieveReachability handles POST /device-status/reachability/v1/retrieve.
//
// There is no direct downstream call for reachability: the device resolves
// to a subscriber profile and the answer derives from its registration and
// connection state. An unknown device renders as 404 IDENTIFIER_NOT_FOUND.
func (h *DeviceStatusHandler) RetrieveReachability(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.RetrieveDeviceStatus
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}

	core, coreName, cerr := selectCore(c, h.Cores, adapter.CapabilityDeviceStatus)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	profile, err := core.GetDeviceProfile(ctx, req.Device)
	if err != nil {
		if errors.Is(err, camara.ErrDeviceNotFound) {
			writeError(c, camara.IdentifierNotFound("The device identifier is not known to the network"))
			return
		}
		h.Logger.Error("reachability profile lookup failed",
			zap.String("core", coreName),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	derived := adapter.DeriveReachability(profile)
	c.JSON(http.StatusOK, camara.ReachabilityStatus{
		LastStatusTime: time.Now().UTC(),
		Reachable:      derived.Reachable,
		Connectivity:   derived.Connectivity,
		Device:         req.Device.SingleIdentifier(),
	})
}

// RetrieveRoaming handles POST /device-status/roaming/v1/retrieve.
func (h *DeviceStatusHandler) RetrieveRoaming(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.RetrieveDeviceStatus
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}

	core, coreName, cerr := selectCore(c, h.Cores, adapter.CapabilityDeviceStatus)
	if cerr != nil {
		writeError(c, cerr)
		return
	}

	profile, err := core.GetDeviceProfile(ctx, req.Device)
	if err != nil {
		h.Logger.Error("roaming profile lookup failed",
			zap.String("core", coreName),
			zap.Error(err),
		)
		writeError(c, err)
		return
	}

	roaming, country := adapter.DeriveRoaming(profile, h.HomeMcc, h.HomeMnc)
	status := camara.RoamingStatus{
		LastStatusTime: time.Now().UTC(),
		Roaming:        roaming,
		Device:         req.Device.SingleIdentifier(),
	}
	if roaming {
		status.CountryCode = country.Code
		status.CountryName = []string{country.Name}
	}
	c.JSON(http.StatusOK, status)
}

// CreateSubscription handles POST .../subscriptions for one subscription
// family.
func (h *DeviceStatusHandler) CreateSubscription(kind storage.SubscriptionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req camara.CreateSubscription
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, camara.InvalidArgument("request body is not valid JSON"))
			return
		}
		if err := req.Validate(); err != nil {
			writeError(c, err)
			return
		}

		_, coreName, cerr := selectCore(c, h.Cores, adapter.CapabilityDeviceStatus)
		if cerr != nil {
			writeError(c, cerr)
			return
		}

		now := time.Now().UTC()
		expiresAt := now.Add(DefaultSubscriptionTTL)
		if req.ExpiresAt != nil {
			expiresAt = req.ExpiresAt.UTC()
		}

		rec := &storage.SubscriptionRecord{
			Subscription: camara.Subscription{
				SubscriptionID: uuid.New().String(),
				Device:         req.Device,
				Sink:           req.Sink,
				Types:          req.Types,
				StartsAt:       now,
				ExpiresAt:      expiresAt,
				MaxEvents:      req.MaxEvents,
			},
			Kind: kind,
			Core: coreName,
		}

		if err := h.Store.CreateSubscription(ctx, rec); err != nil {
			writeError(c, storeError(err))
			return
		}

		h.Logger.Info("device status subscription created",
			zap.String("subscription_id", rec.SubscriptionID),
			zap.String("kind", string(kind)),
			zap.Time("expires_at", rec.ExpiresAt),
		)
		c.JSON(http.StatusCreated, rec.Subscription)
	}
}

// ListSubscriptions handles GET .../subscriptions for one family.
func (h *DeviceStatusHandler) ListSubscriptions(kind storage.SubscriptionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		recs, err := h.Store.ListSubscriptions(ctx, kind)
		if err != nil {
			writeError(c, storeError(err))
			return
		}

		subscriptions := make([]camara.Subscription, 0, len(recs))
		for _, rec := range recs {
			subscriptions = append(subscriptions, rec.Subscription)
		}
		c.JSON(http.StatusOK, subscriptions)
	}
}

// GetSubscription handles GET .../subscriptions/:subscriptionId.
func (h *DeviceStatusHandler) GetSubscription(kind storage.SubscriptionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		rec, err := h.Store.GetSubscription(ctx, kind, c.Param("subscriptionId"))
		if err != nil {
			writeError(c, storeError(err))
			return
		}
		c.JSON(http.StatusOK, rec.Subscription)
	}
}

// DeleteSubscription handles DELETE .../subscriptions/:subscriptionId.
// A subscription-ends event with reason SUBSCRIPTION_DELETED goes to the
// sink before the record is removed.
func (h *DeviceStatusHandler) DeleteSubscription(kind storage.SubscriptionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		rec, err := h.Store.GetSubscription(ctx, kind, c.Param("subscriptionId"))
		if err != nil {
			writeError(c, storeError(err))
			return
		}

		if h.Publisher != nil {
			ends := events.NewSubscriptionEnds(rec, events.TerminationReasonDeleted)
			if err := h.Publisher.Publish(ctx, ends); err != nil {
				h.Logger.Error("failed to publish subscription-ends event",
					zap.String("subscription_id", rec.SubscriptionID),
					zap.Error(err),
				)
			}
		}

		if err := h.Store.DeleteSubscription(ctx, kind, rec.SubscriptionID); err != nil {
			writeError(c, storeError(err))
			return
		}

		h.Logger.Info("device status subscription deleted",
			zap.String("subscription_id", rec.SubscriptionID),
			zap.String("kind", string(kind)),
		)
		c.Status(http.StatusNoContent)
	}
}

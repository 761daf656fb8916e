package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/storage"
)

const (
	// DefaultSimSwapMaxAge is the check window in hours when the caller
	// supplies none.
	DefaultSimSwapMaxAge = 240

	// DefaultMonitoredDays is the operator's monitored period in days and
	// the ceiling on maxAge (in hours, after conversion).
	DefaultMonitoredDays = 120
)

// SimSwapHandler handles the SIM Swap check and retrieve-date endpoints,
// plus the admin swap-simulation hook. Swap timestamps are an explicit
// input recorded through the hook, never derived.
type SimSwapHandler struct {
	Store  storage.Store
	Logger *zap.Logger

	// MonitoredDays bounds both the check window and the retrieve-date
	// answer.
	MonitoredDays int
}

// NewSimSwapHandler creates a new SimSwapHandler.
func NewSimSwapHandler(store storage.Store, logger *zap.Logger, monitoredDays int) *SimSwapHandler {
	if store == nil {
		panic("storage cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if monitoredDays <= 0 {
		monitoredDays = DefaultMonitoredDays
	}
	return &SimSwapHandler{Store: store, Logger: logger, MonitoredDays: monitoredDays}
}

// resolvePhone picks the subscriber phone number from the request body or
// from the access token identity the auth layer placed in the context.
// Supplying both is rejected as an unnecessary identifier.
func (h *SimSwapHandler) resolvePhone(c *gin.Context, bodyPhone string) (string, *camara.Error) {
	tokenPhone := c.GetString(tokenPhoneKey)
	switch {
	case bodyPhone != "" && tokenPhone != "":
		if bodyPhone != tokenPhone {
			return "", camara.UnnecessaryIdentifier("the access token already identifies the subscriber")
		}
		return bodyPhone, nil
	case bodyPhone != "":
		return bodyPhone, nil
	case tokenPhone != "":
		return tokenPhone, nil
	}
	return "", camara.MissingIdentifier("a phone number is required")
}

// Check handles POST /sim-swap/vwip/check.
//
// swapped is true iff the recorded SIM change falls within the last maxAge
// hours. A phone number with no recorded change answers false.
func (h *SimSwapHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.CheckSimSwap
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}

	phone, cerr := h.resolvePhone(c, req.PhoneNumber)
	if cerr != nil {
		writeError(c, cerr)
		return
	}
	if err := (&camara.Device{PhoneNumber: phone}).Validate(); err != nil {
		writeError(c, err)
		return
	}

	maxAge := req.MaxAge
	if maxAge == 0 {
		maxAge = DefaultSimSwapMaxAge
	}
	ceiling := h.MonitoredDays * 24
	if maxAge < 1 || maxAge > ceiling {
		writeError(c, camara.OutOfRange(fmt.Sprintf("maxAge must be between 1 and %d hours", ceiling)))
		return
	}

	rec, err := h.Store.GetSwap(ctx, phone)
	if err != nil {
		if errors.Is(err, storage.ErrSwapRecordNotFound) {
			c.JSON(http.StatusOK, camara.CheckSimSwapInfo{Swapped: false})
			return
		}
		writeError(c, storeError(err))
		return
	}

	threshold := time.Now().UTC().Add(-time.Duration(maxAge) * time.Hour)
	c.JSON(http.StatusOK, camara.CheckSimSwapInfo{
		Swapped: !rec.LatestSimChange.Before(threshold),
	})
}

// RetrieveDate handles POST /sim-swap/vwip/retrieve-date.
//
// Exactly one of latestSimChange and monitoredPeriod is non-null: the swap
// timestamp when it falls inside the monitored window, the window length
// in days otherwise.
func (h *SimSwapHandler) RetrieveDate(c *gin.Context) {
	ctx := c.Request.Context()

	var req camara.RetrieveSimSwapDate
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}

	phone, cerr := h.resolvePhone(c, req.PhoneNumber)
	if cerr != nil {
		writeError(c, cerr)
		return
	}
	if err := (&camara.Device{PhoneNumber: phone}).Validate(); err != nil {
		writeError(c, err)
		return
	}

	monitored := h.MonitoredDays
	outside := camara.SimSwapInfo{MonitoredPeriod: &monitored}

	rec, err := h.Store.GetSwap(ctx, phone)
	if err != nil {
		if errors.Is(err, storage.ErrSwapRecordNotFound) {
			c.JSON(http.StatusOK, outside)
			return
		}
		writeError(c, storeError(err))
		return
	}

	windowStart := time.Now().UTC().AddDate(0, 0, -h.MonitoredDays)
	if rec.LatestSimChange.Before(windowStart) {
		c.JSON(http.StatusOK, outside)
		return
	}

	ts := rec.LatestSimChange
	c.JSON(http.StatusOK, camara.SimSwapInfo{LatestSimChange: &ts})
}

// simulateSwapRequest is the admin hook payload. Timestamp defaults to now.
type simulateSwapRequest struct {
	PhoneNumber string     `json:"phoneNumber"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// SimulateSwap handles POST /sim-swap/vwip/simulate-swap. It records a SIM
// change timestamp for a phone number so the check and retrieve-date
// endpoints have explicit input to answer from.
func (h *SimSwapHandler) SimulateSwap(c *gin.Context) {
	ctx := c.Request.Context()

	var req simulateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, camara.InvalidArgument("request body is not valid JSON"))
		return
	}
	if req.PhoneNumber == "" {
		writeError(c, camara.MissingIdentifier("a phone number is required"))
		return
	}
	if err := (&camara.Device{PhoneNumber: req.PhoneNumber}).Validate(); err != nil {
		writeError(c, err)
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	if err := h.Store.PutSwap(ctx, &storage.SwapRecord{
		PhoneNumber:     req.PhoneNumber,
		LatestSimChange: ts,
	}); err != nil {
		writeError(c, storeError(err))
		return
	}

	h.Logger.Info("sim swap recorded",
		zap.String("phone_number", req.PhoneNumber),
		zap.Time("latest_sim_change", ts),
	)
	c.Status(http.StatusNoContent)
}

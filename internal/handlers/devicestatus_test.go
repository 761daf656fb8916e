package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/events"
	"github.com/piwi3910/camweave/internal/storage"
)

func deviceStatusRouter(env *testEnv) *gin.Engine {
	h := NewDeviceStatusHandler(&DeviceStatusConfig{
		Store:     env.store,
		Cores:     env.cores,
		Publisher: env.publisher,
		Logger:    zap.NewNop(),
		HomeMcc:   "001",
		HomeMnc:   "06",
	})

	router := gin.New()
	reach := router.Group("/device-status/reachability/v1")
	reach.POST("/retrieve", h.RetrieveReachability)
	reach.POST("/subscriptions", h.CreateSubscription(storage.SubscriptionReachability))
	reach.GET("/subscriptions", h.ListSubscriptions(storage.SubscriptionReachability))
	reach.GET("/subscriptions/:subscriptionId", h.GetSubscription(storage.SubscriptionReachability))
	reach.DELETE("/subscriptions/:subscriptionId", h.DeleteSubscription(storage.SubscriptionReachability))

	roam := router.Group("/device-status/roaming/v1")
	roam.POST("/retrieve", h.RetrieveRoaming)
	roam.POST("/subscriptions", h.CreateSubscription(storage.SubscriptionRoaming))
	roam.GET("/subscriptions/:subscriptionId", h.GetSubscription(storage.SubscriptionRoaming))
	return router
}

func TestRetrieveReachability(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	tests := []struct {
		name             string
		phone            string
		wantReachable    bool
		wantConnectivity []camara.ConnectivityType
	}{
		{
			name:             "connected with pdu sessions",
			phone:            "+33600000001",
			wantReachable:    true,
			wantConnectivity: []camara.ConnectivityType{camara.ConnectivityData},
		},
		{
			name:             "idle",
			phone:            "+33600000002",
			wantReachable:    true,
			wantConnectivity: []camara.ConnectivityType{camara.ConnectivitySMS},
		},
		{
			name:          "deregistered",
			phone:         "+33600000004",
			wantReachable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/retrieve",
				camara.RetrieveDeviceStatus{Device: &camara.Device{PhoneNumber: tt.phone}})
			require.Equal(t, http.StatusOK, w.Code)

			var status camara.ReachabilityStatus
			decodeJSON(t, w, &status)
			assert.Equal(t, tt.wantReachable, status.Reachable)
			assert.Equal(t, tt.wantConnectivity, status.Connectivity)
			require.NotNil(t, status.Device)
			assert.Equal(t, tt.phone, status.Device.PhoneNumber)
		})
	}
}

func TestRetrieveReachability_Failures(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	w := doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/retrieve",
		camara.RetrieveDeviceStatus{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, camara.CodeMissingIdentifier, decodeError(t, w).Code)

	w = doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/retrieve",
		camara.RetrieveDeviceStatus{Device: &camara.Device{PhoneNumber: "+19990000000"}})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, camara.CodeIdentifierNotFound, decodeError(t, w).Code)
}

func TestRetrieveRoaming(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	// Home network subscriber.
	w := doJSON(t, router, http.MethodPost, "/device-status/roaming/v1/retrieve",
		camara.RetrieveDeviceStatus{Device: knownDevice()})
	require.Equal(t, http.StatusOK, w.Code)

	var status camara.RoamingStatus
	decodeJSON(t, w, &status)
	assert.False(t, status.Roaming)
	assert.Zero(t, status.CountryCode)

	// Subscriber served by the French PLMN.
	w = doJSON(t, router, http.MethodPost, "/device-status/roaming/v1/retrieve",
		camara.RetrieveDeviceStatus{Device: &camara.Device{PhoneNumber: "+33600000003"}})
	require.Equal(t, http.StatusOK, w.Code)

	decodeJSON(t, w, &status)
	assert.True(t, status.Roaming)
	assert.Equal(t, 33, status.CountryCode)
	assert.Equal(t, []string{"France"}, status.CountryName)
}

func TestRetrieveRoaming_UnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	w := doJSON(t, router, http.MethodPost, "/device-status/roaming/v1/retrieve",
		camara.RetrieveDeviceStatus{Device: &camara.Device{PhoneNumber: "+19990000000"}})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, camara.CodeDeviceNotFound, decodeError(t, w).Code)
}

func TestCreateSubscription(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	before := time.Now().UTC()
	w := doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/subscriptions",
		camara.CreateSubscription{
			Device: knownDevice(),
			Sink:   "https://app.example.com/notifications",
		})
	require.Equal(t, http.StatusCreated, w.Code)

	var sub camara.Subscription
	decodeJSON(t, w, &sub)
	assert.NotEmpty(t, sub.SubscriptionID)
	assert.WithinDuration(t, before.Add(DefaultSubscriptionTTL), sub.ExpiresAt, 5*time.Second)

	rec, err := env.store.GetSubscription(context.Background(), storage.SubscriptionReachability, sub.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, storage.SubscriptionReachability, rec.Kind)
	assert.Equal(t, "mock", rec.Core)
}

func TestCreateSubscription_ExplicitExpiry(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	w := doJSON(t, router, http.MethodPost, "/device-status/roaming/v1/subscriptions",
		camara.CreateSubscription{
			Device:    knownDevice(),
			Sink:      "https://app.example.com/notifications",
			ExpiresAt: &expires,
		})
	require.Equal(t, http.StatusCreated, w.Code)

	var sub camara.Subscription
	decodeJSON(t, w, &sub)
	assert.True(t, sub.ExpiresAt.Equal(expires))
}

func TestCreateSubscription_Validation(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	w := doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/subscriptions",
		camara.CreateSubscription{Sink: "https://app.example.com/notifications"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, camara.CodeMissingIdentifier, decodeError(t, w).Code)

	w = doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/subscriptions",
		camara.CreateSubscription{Device: knownDevice()})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, camara.CodeInvalidArgument, decodeError(t, w).Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	w := doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/subscriptions",
		camara.CreateSubscription{
			Device: knownDevice(),
			Sink:   "https://app.example.com/notifications",
		})
	require.Equal(t, http.StatusCreated, w.Code)
	var sub camara.Subscription
	decodeJSON(t, w, &sub)

	w = doJSON(t, router, http.MethodGet, "/device-status/reachability/v1/subscriptions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []camara.Subscription
	decodeJSON(t, w, &list)
	require.Len(t, list, 1)

	w = doJSON(t, router, http.MethodGet, "/device-status/reachability/v1/subscriptions/"+sub.SubscriptionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/device-status/reachability/v1/subscriptions/"+sub.SubscriptionID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/device-status/reachability/v1/subscriptions/"+sub.SubscriptionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Deleting publishes a subscription-ends event to the sink.
	published := env.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypeReachabilitySubscriptionEnds, published[0].Event.Type)
	data, ok := published[0].Event.Data.(*events.SubscriptionEndsData)
	require.True(t, ok)
	assert.Equal(t, events.TerminationReasonDeleted, data.TerminationReason)
}

func TestGetSubscription_WrongKind(t *testing.T) {
	env := newTestEnv(t)
	router := deviceStatusRouter(env)

	w := doJSON(t, router, http.MethodPost, "/device-status/reachability/v1/subscriptions",
		camara.CreateSubscription{
			Device: knownDevice(),
			Sink:   "https://app.example.com/notifications",
		})
	require.Equal(t, http.StatusCreated, w.Code)
	var sub camara.Subscription
	decodeJSON(t, w, &sub)

	// A reachability subscription is invisible to the roaming family.
	w = doJSON(t, router, http.MethodGet, "/device-status/roaming/v1/subscriptions/"+sub.SubscriptionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

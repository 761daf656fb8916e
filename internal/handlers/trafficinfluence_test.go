package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
)

func trafficInfluenceRouter(env *testEnv) *gin.Engine {
	h := NewTrafficInfluenceHandler(env.store, env.cores, zap.NewNop())

	router := gin.New()
	vwip := router.Group("/traffic-influence/vwip")
	vwip.GET("/traffic-influences", h.List)
	vwip.POST("/traffic-influences", h.Create)
	vwip.POST("/traffic-influence-devices", h.CreateForDevice)
	vwip.GET("/traffic-influences/:id", h.Get)
	vwip.PATCH("/traffic-influences/:id", h.Patch)
	vwip.DELETE("/traffic-influences/:id", h.Delete)
	return router
}

func validInfluence() camara.TrafficInfluence {
	return camara.TrafficInfluence{
		AppID:           "video-streaming",
		AppInstanceID:   "instance-1",
		EdgeCloudZoneID: "zone-west",
		Device:          knownDevice(),
	}
}

func TestCreateTrafficInfluence(t *testing.T) {
	env := newTestEnv(t)
	router := trafficInfluenceRouter(env)

	w := doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", validInfluence())
	require.Equal(t, http.StatusCreated, w.Code)

	var ti camara.TrafficInfluence
	decodeJSON(t, w, &ti)
	assert.NotEmpty(t, ti.TrafficInfluenceID)
	assert.Equal(t, camara.TIStateActive, ti.State)
	assert.Nil(t, ti.Device)
	assert.Equal(t,
		"/traffic-influence/vwip/traffic-influences/"+ti.TrafficInfluenceID,
		w.Header().Get("Location"))

	rec, err := env.store.GetInfluence(context.Background(), ti.TrafficInfluenceID)
	require.NoError(t, err)
	assert.Equal(t, "mock", rec.Core)
	assert.NotEmpty(t, rec.CoreSubscriptionID)
	assert.NotNil(t, rec.Device)
}

func TestCreateTrafficInfluence_Validation(t *testing.T) {
	env := newTestEnv(t)
	router := trafficInfluenceRouter(env)

	// appId is always required.
	ti := validInfluence()
	ti.AppID = ""
	w := doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", ti)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, camara.CodeInvalidArgument, decodeError(t, w).Code)

	// The device-scoped endpoint requires a device.
	ti = validInfluence()
	ti.Device = nil
	w = doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influence-devices", ti)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, camara.CodeMissingIdentifier, decodeError(t, w).Code)

	// The plain endpoint accepts a deviceless intent.
	w = doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", ti)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListTrafficInfluences(t *testing.T) {
	env := newTestEnv(t)
	router := trafficInfluenceRouter(env)

	w := doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", validInfluence())
	require.Equal(t, http.StatusCreated, w.Code)

	other := validInfluence()
	other.AppID = "gaming"
	w = doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", other)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/traffic-influence/vwip/traffic-influences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []camara.TrafficInfluence
	decodeJSON(t, w, &list)
	require.Len(t, list, 2)
	for _, ti := range list {
		assert.Nil(t, ti.Device)
	}

	w = doJSON(t, router, http.MethodGet, "/traffic-influence/vwip/traffic-influences?appId=gaming", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "gaming", list[0].AppID)
}

func TestGetTrafficInfluence(t *testing.T) {
	env := newTestEnv(t)
	router := trafficInfluenceRouter(env)

	w := doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", validInfluence())
	require.Equal(t, http.StatusCreated, w.Code)
	var created camara.TrafficInfluence
	decodeJSON(t, w, &created)

	w = doJSON(t, router, http.MethodGet, "/traffic-influence/vwip/traffic-influences/"+created.TrafficInfluenceID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got camara.TrafficInfluence
	decodeJSON(t, w, &got)
	assert.Equal(t, created.TrafficInfluenceID, got.TrafficInfluenceID)
	assert.Nil(t, got.Device)

	w = doJSON(t, router, http.MethodGet, "/traffic-influence/vwip/traffic-influences/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, camara.CodeNotFound, decodeError(t, w).Code)
}

func TestPatchTrafficInfluence(t *testing.T) {
	env := newTestEnv(t)
	router := trafficInfluenceRouter(env)

	w := doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", validInfluence())
	require.Equal(t, http.StatusCreated, w.Code)
	var created camara.TrafficInfluence
	decodeJSON(t, w, &created)

	w = doJSON(t, router, http.MethodPatch,
		"/traffic-influence/vwip/traffic-influences/"+created.TrafficInfluenceID,
		camara.TrafficInfluence{EdgeCloudZoneID: "zone-east"})
	require.Equal(t, http.StatusOK, w.Code)

	var patched camara.TrafficInfluence
	decodeJSON(t, w, &patched)
	assert.Equal(t, "zone-east", patched.EdgeCloudZoneID)
	assert.Nil(t, patched.Device)
}

func TestPatchTrafficInfluence_NotActive(t *testing.T) {
	env := newTestEnv(t)
	router := trafficInfluenceRouter(env)

	w := doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", validInfluence())
	require.Equal(t, http.StatusCreated, w.Code)
	var created camara.TrafficInfluence
	decodeJSON(t, w, &created)

	rec, err := env.store.GetInfluence(context.Background(), created.TrafficInfluenceID)
	require.NoError(t, err)
	rec.State = camara.TIStateOrdered
	require.NoError(t, env.store.UpdateInfluence(context.Background(), rec))

	w = doJSON(t, router, http.MethodPatch,
		"/traffic-influence/vwip/traffic-influences/"+created.TrafficInfluenceID,
		camara.TrafficInfluence{EdgeCloudZoneID: "zone-east"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, camara.CodeDeniedWait, decodeError(t, w).Code)
}

func TestDeleteTrafficInfluence(t *testing.T) {
	env := newTestEnv(t)
	router := trafficInfluenceRouter(env)

	w := doJSON(t, router, http.MethodPost, "/traffic-influence/vwip/traffic-influences", validInfluence())
	require.Equal(t, http.StatusCreated, w.Code)
	var created camara.TrafficInfluence
	decodeJSON(t, w, &created)

	w = doJSON(t, router, http.MethodDelete,
		"/traffic-influence/vwip/traffic-influences/"+created.TrafficInfluenceID, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, "{}", w.Body.String())

	rec, err := env.store.GetInfluence(context.Background(), created.TrafficInfluenceID)
	require.NoError(t, err)
	assert.Equal(t, camara.TIStateDeleted, rec.State)
	assert.True(t, rec.Terminal())
}

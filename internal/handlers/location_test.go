package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
)

func locationRouter(env *testEnv) *gin.Engine {
	h := NewLocationHandler(env.cores, zap.NewNop())

	router := gin.New()
	router.POST("/location-retrieval/v0/retrieve", h.Retrieve)
	return router
}

func TestRetrieveLocation(t *testing.T) {
	env := newTestEnv(t)
	router := locationRouter(env)

	w := doJSON(t, router, http.MethodPost, "/location-retrieval/v0/retrieve",
		camara.RetrieveLocation{Device: knownDevice()})
	require.Equal(t, http.StatusOK, w.Code)

	var loc camara.Location
	decodeJSON(t, w, &loc)

	require.NotNil(t, loc.Area)
	assert.Equal(t, camara.AreaTypePolygon, loc.Area.AreaType)
	assert.Len(t, loc.Area.Boundary, 3)

	// The mock reports a one minute old fix; lastLocationTime is shifted
	// back by that age.
	assert.WithinDuration(t, time.Now().UTC().Add(-time.Minute), loc.LastLocationTime, 5*time.Second)

	require.NotNil(t, loc.Device)
	assert.Equal(t, "+33600000001", loc.Device.PhoneNumber)
}

func TestRetrieveLocation_IdentifierFailures(t *testing.T) {
	env := newTestEnv(t)
	router := locationRouter(env)

	// Missing device object entirely.
	w := doJSON(t, router, http.MethodPost, "/location-retrieval/v0/retrieve",
		camara.RetrieveLocation{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, camara.CodeMissingIdentifier, decodeError(t, w).Code)

	// Present but empty device object.
	w = doJSON(t, router, http.MethodPost, "/location-retrieval/v0/retrieve",
		camara.RetrieveLocation{Device: &camara.Device{}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, camara.CodeDeviceUnidentifiable, decodeError(t, w).Code)
}

func TestRetrieveLocation_UnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	router := locationRouter(env)

	w := doJSON(t, router, http.MethodPost, "/location-retrieval/v0/retrieve",
		camara.RetrieveLocation{Device: &camara.Device{PhoneNumber: "+19990000000"}})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, camara.CodeDeviceNotFound, decodeError(t, w).Code)
}

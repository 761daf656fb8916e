// Package handlers implements the gin handlers for the five CAMARA API
// families. Every handler follows the same pipeline: bind and validate the
// request, select the core adapter, dispatch the translated call, persist
// the outcome, and render either the response or a mapped wire error.
// Handlers never construct error bodies themselves; camara.ToError is the
// single mapping point.
package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/events"
	"github.com/piwi3910/camweave/internal/registry"
	"github.com/piwi3910/camweave/internal/storage"
)

// coreQueryParam selects a registered core adapter by name. Absent, the
// default core answers.
const coreQueryParam = "core"

// tokenPhoneKey is the gin context key under which the authentication
// layer places a subscriber phone number resolved from the access token.
const tokenPhoneKey = "token_phone_number"

// Publisher feeds lifecycle events into the notification pipeline.
type Publisher interface {
	Publish(ctx context.Context, event *events.QueuedEvent) error
}

// writeError renders any failure as the CAMARA wire error.
func writeError(c *gin.Context, err error) {
	ce := camara.ToError(err)
	c.JSON(ce.Status, ce)
}

// selectCore resolves the core query parameter against the registry and
// checks the capability the endpoint needs. Unknown selectors render as
// 503 SERVICE_UNAVAILABLE.
func selectCore(c *gin.Context, cores *registry.Registry, capability adapter.Capability) (adapter.Adapter, string, *camara.Error) {
	name := c.Query(coreQueryParam)
	core, err := cores.Select(name)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownCore) {
			return nil, "", camara.ServiceUnavailable("Unknown network core: " + name)
		}
		return nil, "", camara.ServiceUnavailable("No network core available")
	}
	if name == "" {
		name = cores.DefaultName()
	}
	if !adapter.Supports(core, capability) {
		return nil, "", camara.ServiceUnavailable("The selected core does not support this operation")
	}
	return core, name, nil
}

// coreByName resolves a stored record's owning core. A record whose core
// was unconfigured since creation renders as 503.
func coreByName(cores *registry.Registry, name string) (adapter.Adapter, *camara.Error) {
	core := cores.Get(name)
	if core == nil {
		return nil, camara.ServiceUnavailable("The core owning this resource is not configured")
	}
	return core, nil
}

// storeError maps storage sentinels onto wire errors. Unmapped failures
// fall through to ToError.
func storeError(err error) *camara.Error {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound),
		errors.Is(err, storage.ErrInfluenceNotFound),
		errors.Is(err, storage.ErrSubscriptionNotFound):
		return camara.NotFound("Resource not found")
	case errors.Is(err, storage.ErrStorageUnavailable):
		return camara.ServiceUnavailable("Storage unavailable")
	}
	return camara.ToError(err)
}

// sameDevice reports whether two device descriptions identify the same
// subscriber through any shared identifier kind.
func sameDevice(a, b *camara.Device) bool {
	if a == nil || b == nil {
		return false
	}
	if a.PhoneNumber != "" && a.PhoneNumber == b.PhoneNumber {
		return true
	}
	if a.NetworkAccessIdentifier != "" && a.NetworkAccessIdentifier == b.NetworkAccessIdentifier {
		return true
	}
	if a.IPv4Address != nil && b.IPv4Address != nil &&
		a.IPv4Address.PublicAddress != "" &&
		a.IPv4Address.PublicAddress == b.IPv4Address.PublicAddress {
		return true
	}
	if a.IPv6Address != "" && a.IPv6Address == b.IPv6Address {
		return true
	}
	return false
}

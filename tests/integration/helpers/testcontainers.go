// Package helpers provides common test utilities for integration tests:
// testcontainers setup, a sink capture server, and CAMARA test fixtures.
//
//go:build integration
// +build integration

package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisContainer represents a test Redis container.
type RedisContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// SetupRedisContainer starts a Redis container and waits for it to
// accept connections.
func SetupRedisContainer(ctx context.Context, t *testing.T) *RedisContainer {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7.4-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort("6379/tcp"),
		).WithDeadline(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get Redis host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("failed to get Redis port: %v", err)
	}

	r := &RedisContainer{
		Container: container,
		Host:      host,
		Port:      mappedPort.Port(),
	}

	t.Cleanup(func() {
		if err := r.Cleanup(ctx); err != nil {
			t.Logf("failed to cleanup Redis container: %v", err)
		}
	})

	return r
}

// Addr returns the Redis connection address.
func (r *RedisContainer) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Cleanup terminates the Redis container.
func (r *RedisContainer) Cleanup(ctx context.Context) error {
	if r.Container != nil {
		if err := r.Container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate Redis container: %w", err)
		}
	}
	return nil
}

//go:build integration

// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tradingagents/internal/collectors"
)

const (
	// RedisPort is the port redis-server listens on inside the container.
	RedisPort = "6379/tcp"

	// StartupTimeout is how long to wait for redis to accept connections.
	StartupTimeout = 60 * time.Second
)

// RedisContainer holds a running redis container used to exercise
// collectors.Cache against a real server instead of the addr=="" stub.
type RedisContainer struct {
	Container testcontainers.Container
	Addr      string
}

// StartRedisContainer starts a disposable redis:7-alpine container.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{RedisPort},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(StartupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, "6379")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get host: %w", err)
	}

	return &RedisContainer{
		Container: container,
		Addr:      fmt.Sprintf("%s:%s", host, mappedPort.Port()),
	}, nil
}

// Stop terminates the container.
func (rc *RedisContainer) Stop(ctx context.Context) error {
	if rc.Container != nil {
		return rc.Container.Terminate(ctx)
	}
	return nil
}

// NewCache builds a collectors.Cache pointed at this container.
func (rc *RedisContainer) NewCache() *collectors.Cache {
	return collectors.NewCache(rc.Addr, 0, nil)
}

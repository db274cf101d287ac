package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/cassandra"
	"github.com/testcontainers/testcontainers-go/wait"
)

type (
	// ContainerOptions represents options for running Cassandra in Docker.
	ContainerOptions struct {
		// Version is the Cassandra image tag to run (default: latest).
		Version string

		// ConfigDir is an optional Cassandra config directory to mount over
		// /etc/cassandra (relative paths are converted to absolute).
		ConfigDir string
	}

	// Container manages a throwaway Cassandra node with dynamic ports.
	Container struct {
		options   ContainerOptions
		container *cassandra.CassandraContainer
	}
)

// NewContainer creates a Cassandra container with the given options.
//
// Example:
//
//	c := docker.NewContainer(docker.ContainerOptions{Version: "5.0"})
//	if err := c.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer c.Stop(ctx)
//
//	host, _ := c.ConnectionHost(ctx)
func NewContainer(opts ContainerOptions) *Container {
	return &Container{options: opts}
}

// Start starts the Cassandra container with the configured version and waits
// until the node answers CQL.
func (c *Container) Start(ctx context.Context) error {
	if c.container != nil {
		return errors.New("container is already running")
	}

	version := c.options.Version
	if version == "" {
		version = "latest"
	}

	// Trim the JVM heap; the default sizing assumes a production host.
	customizers := []testcontainers.ContainerCustomizer{
		testcontainers.WithEnv(map[string]string{
			"MAX_HEAP_SIZE": "512M",
			"HEAP_NEWSIZE":  "128M",
		}),
		testcontainers.WithWaitStrategyAndDeadline(
			5*time.Minute,
			wait.ForListeningPort("9042/tcp"),
		),
	}

	if c.options.ConfigDir != "" {
		absConfigDir, err := filepath.Abs(c.options.ConfigDir)
		if err != nil {
			return errors.Wrapf(err, "failed to get absolute path for ConfigDir: %s", c.options.ConfigDir)
		}

		customizers = append(
			customizers,
			testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
				hostConfig.Mounts = []mount.Mount{
					{
						Type:   mount.TypeBind,
						Source: absConfigDir,
						Target: "/etc/cassandra",
					},
				}
			}),
		)
	}

	started, err := cassandra.Run(ctx, fmt.Sprintf("cassandra:%s", version), customizers...)
	if err != nil {
		return errors.Wrap(err, "failed to start Cassandra container")
	}

	c.container = started
	return nil
}

// Stop stops and removes the Cassandra container. Stopping an already stopped
// container is not an error.
func (c *Container) Stop(ctx context.Context) error {
	if c.container == nil {
		return nil
	}

	err := c.container.Terminate(ctx)
	c.container = nil

	if err != nil {
		return errors.Wrap(err, "failed to stop Cassandra container")
	}

	return nil
}

// ConnectionHost returns the host:port of the node's mapped CQL port.
func (c *Container) ConnectionHost(ctx context.Context) (string, error) {
	if c.container == nil {
		return "", errors.New("container is not running")
	}

	host, err := c.container.ConnectionHost(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to get connection host")
	}

	return host, nil
}

// IsRunning returns true if the container is currently running.
func (c *Container) IsRunning() bool {
	return c.container != nil
}

// Package docker wraps the Docker Engine API for decoys deployed as
// containers.
package docker

import (
	"context"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// ContainerInfo is the subset of container state honeydash uses.
type ContainerInfo struct {
	ID      string
	Name    string
	Image   string
	State   string
	Running bool
}

// API is the part of the Engine client used here.
type API interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
}

type Client struct {
	api API
}

// New establishes a Docker client using environment configuration with API
// version negotiation enabled, and checks the daemon answers.
func New(ctx context.Context) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create docker client")
	}
	c := &Client{api: cli}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithAPI is used by tests to supply a fake engine.
func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// Ping validates connectivity with the Docker daemon within a short timeout window.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := c.api.Ping(pingCtx); err != nil {
		return cerr.Wrap(err, "docker daemon unreachable")
	}
	return nil
}

// FindContainer returns the container whose name is exactly name.
func (c *Client) FindContainer(rc *honey_io.RuntimeContext, name string) (*ContainerInfo, bool, error) {
	ctx, cancel := context.WithTimeout(rc.Ctx, defaultTimeout)
	defer cancel()

	list, err := c.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return nil, false, cerr.Wrapf(err, "failed to list containers named %s", name)
	}

	for _, s := range list {
		for _, n := range s.Names {
			if strings.TrimPrefix(n, "/") == name {
				info := &ContainerInfo{
					ID:      s.ID,
					Name:    name,
					Image:   s.Image,
					State:   string(s.State),
					Running: string(s.State) == "running",
				}
				otelzap.Ctx(rc.Ctx).Debug("Found container",
					zap.String("name", name),
					zap.String("id", shortID(s.ID)),
					zap.String("state", info.State))
				return info, true, nil
			}
		}
	}
	return nil, false, nil
}

// IsRunning inspects the container's current state.
func (c *Client) IsRunning(rc *honey_io.RuntimeContext, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(rc.Ctx, defaultTimeout)
	defer cancel()

	resp, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return false, cerr.Wrapf(err, "failed to inspect container %s", shortID(id))
	}
	return resp.ContainerJSONBase != nil && resp.State != nil && resp.State.Running, nil
}

func (c *Client) Start(rc *honey_io.RuntimeContext, id string) error {
	otelzap.Ctx(rc.Ctx).Info("Starting container", zap.String("id", shortID(id)))
	if err := c.api.ContainerStart(rc.Ctx, id, container.StartOptions{}); err != nil {
		return cerr.Wrapf(err, "failed to start container %s", shortID(id))
	}
	return nil
}

func (c *Client) Stop(rc *honey_io.RuntimeContext, id string) error {
	timeout := 10
	otelzap.Ctx(rc.Ctx).Info("Stopping container", zap.String("id", shortID(id)))
	if err := c.api.ContainerStop(rc.Ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return cerr.Wrapf(err, "failed to stop container %s", shortID(id))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Package docker runs external tools inside sandboxed containers. Both the
// document extractor and the static-analysis tool go through here so they
// share the same timeout, resource-cap, and metrics treatment.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cegas",
		Subsystem: "toolrunner",
		Name:      "run_duration_seconds",
		Help:      "Duration of container tool runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cegas",
		Subsystem: "toolrunner",
		Name:      "run_timeouts_total",
		Help:      "Number of tool runs that hit the timeout",
	}, []string{"image"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cegas",
		Subsystem: "toolrunner",
		Name:      "run_failures_total",
		Help:      "Number of tool runs that resulted in an error",
	}, []string{"image"})
)

// Executor runs a command inside a sandboxed container.
type Executor interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// RunRequest describes one tool invocation.
type RunRequest struct {
	Image         string
	Cmd           []string
	Env           []string
	Timeout       time.Duration
	Workspace     string
	WorkingDir    string
	MemoryLimitMB int64
	CPUShares     int64
}

// RunResult summarises the outcome of a container run.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Config groups executor configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkingDir    string
	Logger        zerolog.Logger
}

// ContainerExecutor implements Executor using the Docker API.
type ContainerExecutor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewContainerExecutor constructs a Docker backed executor.
func NewContainerExecutor(cfg Config) (*ContainerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/workspace"
	}

	return &ContainerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/kkian481718/CEGAS/pkg/docker"),
		logger: cfg.Logger.With().Str("component", "tool_executor").Logger(),
	}, nil
}

// Run executes the command in a network-isolated container, enforcing the
// request timeout. Tool containers never get network access: they only see
// the mounted workspace.
func (e *ContainerExecutor) Run(parent context.Context, req RunRequest) (RunResult, error) {
	if req.Image == "" {
		return RunResult{}, errors.New("image is required")
	}

	ctx, span := e.tracer.Start(parent, "docker.run", trace.WithAttributes(
		attribute.String("docker.image", req.Image),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    req.MemoryLimitMB * 1024 * 1024,
			CPUShares: req.CPUShares,
		},
	}
	if hostCfg.Resources.Memory == 0 && e.cfg.MemoryLimitMB > 0 {
		hostCfg.Resources.Memory = e.cfg.MemoryLimitMB * 1024 * 1024
	}
	if hostCfg.Resources.CPUShares == 0 && e.cfg.CPUShares > 0 {
		hostCfg.Resources.CPUShares = e.cfg.CPUShares
	}
	if req.Workspace != "" {
		hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: req.Workspace,
			Target: e.cfg.WorkingDir,
		})
	}

	containerCfg := &container.Config{
		Image:        req.Image,
		Cmd:          req.Cmd,
		Env:          req.Env,
		WorkingDir:   req.WorkingDir,
		AttachStdout: true,
		AttachStderr: true,
	}
	if containerCfg.WorkingDir == "" {
		containerCfg.WorkingDir = e.cfg.WorkingDir
	}

	start := time.Now()
	result := RunResult{}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		runFailures.WithLabelValues(req.Image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		runFailures.WithLabelValues(req.Image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	result.Duration = time.Since(start)
	runDuration.WithLabelValues(req.Image).Observe(result.Duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			runTimeouts.WithLabelValues(req.Image).Inc()
			killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := e.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
			}
			span.SetStatus(codes.Error, "run timed out")
		} else if !errors.Is(waitErr, context.Canceled) {
			runFailures.WithLabelValues(req.Image).Inc()
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, waitErr.Error())
			return result, fmt.Errorf("container wait: %w", waitErr)
		}
	}

	if logReader, err := e.client.ContainerLogs(parent, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	}); err == nil {
		defer logReader.Close()
		var stdout, stderr bytes.Buffer
		if _, copyErr := stdcopy.StdCopy(&stdout, &stderr, logReader); copyErr != nil {
			e.logger.Error().Err(copyErr).Str("container_id", containerID).Msg("failed to read container logs")
		} else {
			result.Stdout = stdout.String()
			result.Stderr = stderr.String()
		}
	} else {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
	}

	if result.TimedOut {
		return result, fmt.Errorf("run timed out after %s", timeout)
	}

	return result, nil
}

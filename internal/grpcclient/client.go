package grpcclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
	"github.com/GriffinCanCode/snapnotify/internal/resilience"
	"github.com/GriffinCanCode/snapnotify/internal/trace"
)

// Client wraps the daemon's health service.
type Client struct {
	conn   *grpc.ClientConn
	Health healthpb.HealthClient
	retry  resilience.RetryConfig
}

// New creates a client for addr. Extra dial options are appended, which
// lets tests substitute an in-memory dialer.
func New(addr string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "create grpc client").
			WithMetadata("addr", addr)
	}

	return &Client{
		conn:   conn,
		Health: healthpb.NewHealthClient(conn),
		retry:  resilience.DefaultRetryConfig(),
	}, nil
}

// WithRetry replaces the retry policy used by Check.
func (c *Client) WithRetry(cfg resilience.RetryConfig) *Client {
	c.retry = cfg
	return c
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check returns the serving status of one service, retrying transient failures.
func (c *Client) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	ctx, span := trace.StartSpan(ctx, "health_check")
	defer span.End()
	span.SetAttr("service", service)

	var resp *healthpb.HealthCheckResponse
	err := resilience.Retry(ctx, c.retry, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
		defer cancel()
		var err error
		resp, err = c.Health.Check(attemptCtx, &healthpb.HealthCheckRequest{Service: service})
		return err
	})
	if err != nil {
		span.SetAttr("error", err.Error())
		return healthpb.HealthCheckResponse_UNKNOWN, apperrors.FromGRPCError(err).WithMetadata("service", service)
	}
	return resp.GetStatus(), nil
}

// CheckAll checks each service in order and stops at the first error.
func (c *Client) CheckAll(ctx context.Context, services ...string) (map[string]healthpb.HealthCheckResponse_ServingStatus, error) {
	out := make(map[string]healthpb.HealthCheckResponse_ServingStatus, len(services))
	for _, svc := range services {
		st, err := c.Check(ctx, svc)
		if err != nil {
			return out, err
		}
		out[svc] = st
	}
	return out, nil
}

package grpcclient

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
	"github.com/GriffinCanCode/snapnotify/internal/resilience"
)

func startHealth(t *testing.T) (*health.Server, *Client) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := New("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	c.WithRetry(resilience.RetryConfig{
		MaxRetries:  2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		IsRetryable: resilience.IsRetryableGRPC,
	})
	return hs, c
}

func TestCheck(t *testing.T) {
	hs, c := startHealth(t)
	hs.SetServingStatus("snapnotify", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("snapnotify.folder", healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := c.Check(ctx, "snapnotify")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("snapnotify = %v, want SERVING", got)
	}

	got, err = c.Check(ctx, "snapnotify.folder")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("snapnotify.folder = %v, want NOT_SERVING", got)
	}
}

func TestCheckUnknownService(t *testing.T) {
	_, c := startHealth(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Check(ctx, "nope")
	if err == nil {
		t.Fatal("Check of unregistered service should fail")
	}
	if !apperrors.IsCode(err, apperrors.CodeUnknown) {
		t.Errorf("err = %v, want CodeUnknown (NotFound)", err)
	}
}

func TestCheckAll(t *testing.T) {
	hs, c := startHealth(t)
	hs.SetServingStatus("a", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("b", healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := c.CheckAll(ctx, "a", "b")
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if got["a"] != healthpb.HealthCheckResponse_SERVING || got["b"] != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("CheckAll = %v", got)
	}

	got, err = c.CheckAll(ctx, "a", "missing", "b")
	if err == nil {
		t.Fatal("CheckAll should stop at the missing service")
	}
	if _, ok := got["b"]; ok {
		t.Error("services after the failure should not be checked")
	}
}

func TestCheckUnavailable(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	lis.Close()

	c, err := New("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	c.WithRetry(resilience.RetryConfig{
		MaxRetries:  1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		IsRetryable: resilience.IsRetryableGRPC,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.Check(ctx, "snapnotify"); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("err = %v, want CodeUnavailable", err)
	}
}

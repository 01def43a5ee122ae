package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestGenerateIDs(t *testing.T) {
	if id := generateTraceID(); len(id) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(id))
	}
	if id := generateSpanID(); len(id) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(id))
	}
}

func TestIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateTraceID()
		if seen[id] {
			t.Error("generated duplicate trace ID")
		}
		seen[id] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("should not find trace context in empty context")
	}
}

func TestFromMap(t *testing.T) {
	tc := FromMap(map[string]string{TraceIDKey: "trace123", SpanIDKey: "span456"})

	if tc.TraceID != "trace123" {
		t.Error("trace ID mismatch")
	}
	if tc.ParentSpanID != "span456" {
		t.Error("parent span should be caller's span")
	}
	if len(tc.SpanID) != 16 {
		t.Error("should generate new span ID")
	}

	if fresh := FromMap(nil); len(fresh.TraceID) != 32 {
		t.Error("should generate trace ID if missing")
	}
}

func TestSpanNested(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "clipboard_capture")
	_, child := StartSpan(ctx, "save_screenshot")

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}
}

func TestSpanAttrsAndDuration(t *testing.T) {
	_, span := StartSpan(context.Background(), "folder_capture")
	if span.Duration() != 0 {
		t.Error("open span should report zero duration")
	}

	span.SetAttr("path", "/tmp/a.png")
	span.End()

	if v, ok := span.Attr("path"); !ok || v != "/tmp/a.png" {
		t.Errorf("Attr(path) = %v, %v", v, ok)
	}
	if span.EndTime.IsZero() {
		t.Error("span should have end time")
	}
}

func TestMiddlewarePropagatesHeader(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)
	req.Header.Set(TraceIDKey, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.TraceID != "abc" {
		t.Errorf("TraceID = %q, want %q", got.TraceID, "abc")
	}
	if rec.Header().Get(TraceIDKey) != "abc" {
		t.Error("response should echo trace ID")
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	md := metadata.Pairs(TraceIDKey, "trace-in", SpanIDKey, "span-in")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var got Context
	_, err := UnaryServerInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req any) (any, error) {
			got, _ = FromContext(ctx)
			return nil, nil
		})
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if got.TraceID != "trace-in" || got.ParentSpanID != "span-in" {
		t.Errorf("context = %+v, want trace-in/span-in", got)
	}
}

func TestInjectMetadata(t *testing.T) {
	tc := New()
	ctx := injectMetadata(WithContext(context.Background(), tc))

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("outgoing metadata missing")
	}
	if v := md.Get(TraceIDKey); len(v) != 1 || v[0] != tc.TraceID {
		t.Errorf("trace id metadata = %v, want %q", v, tc.TraceID)
	}
}

func TestLogger(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	Logger(ctx).Info("test message")
	Logger(context.Background()).Info("no trace")
}

package grpcserver

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func dialBuf(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.GRPC.Serve(lis) }()
	t.Cleanup(s.GRPC.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestServer_HealthLifecycle(t *testing.T) {
	t.Parallel()

	s := New(zaptest.NewLogger(t), false)
	client := dialBuf(t, s)
	ctx := context.Background()

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q): %v", service, err)
		}
		return resp.GetStatus()
	}

	if got := check(ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("before start: %v", got)
	}
	s.MarkServing()
	if got := check(""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("after MarkServing: %v", got)
	}
	s.MarkNotServing()
	if got := check(ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after MarkNotServing: %v", got)
	}
}

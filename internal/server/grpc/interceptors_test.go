package grpcserver

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestLoggingUnary_LogsMetadataOnly(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ic := LoggingUnary(zap.New(core))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := ic(ctx, "secret-request", info, func(ctx context.Context, req any) (any, error) { return "ok", nil })
	if err != nil || resp.(string) != "ok" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}

	wantErr := status.Error(codes.NotFound, "unknown service")
	_, err = ic(ctx, "req", info, func(ctx context.Context, req any) (any, error) { return nil, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want 2 log entries, got %d", len(entries))
	}
	f := entries[0].ContextMap()
	if f["method"] != info.FullMethod || f["code"] != "OK" || f["peer"] != "127.0.0.1:12345" {
		t.Fatalf("unexpected fields: %v", f)
	}
	if entries[1].ContextMap()["code"] != "NotFound" {
		t.Fatalf("want NotFound code, got %v", entries[1].ContextMap()["code"])
	}
	for _, e := range entries {
		for _, v := range e.ContextMap() {
			if v == "secret-request" {
				t.Fatalf("payload leaked into log")
			}
		}
	}
}

func TestLoggingStream(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ic := LoggingStream(zap.New(core))
	ss := fakeStream{ctx: context.Background()}
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}

	if err := ic(nil, ss, info, func(any, grpc.ServerStream) error { return nil }); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if logs.Len() != 1 || logs.All()[0].ContextMap()["method"] != info.FullMethod {
		t.Fatalf("want one entry for the stream, got %v", logs.All())
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/pto.Ops/Panic"}

	_, err := ic(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	})
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/pto.Ops/Ok"}

	resp, err := ic(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) { return 42, nil })
	if err != nil || resp.(int) != 42 {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
}

func TestRecoverStream_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverStream(zaptest.NewLogger(t))
	info := &grpc.StreamServerInfo{FullMethod: "/pto.Ops/PanicStream"}

	err := ic(nil, fakeStream{ctx: context.Background()}, info, func(any, grpc.ServerStream) error {
		panic("stream boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

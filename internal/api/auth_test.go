package api

import (
	"bytes"
	"context"
	"net"
	"testing"

	"playchrono/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func kioskAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "kiosk-key", Extra: "kiosk-extra", Name: "library kiosk", Permissions: []string{permReadGrounds}},
				{Key: "open-key", Extra: "open-extra", Name: "ops"},
			},
		},
		RateLimit: config.APIRateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
	}
}

func TestAuthInterceptor(t *testing.T) {
	cfg := kioskAPIConfig()
	interceptor := NewAuthInterceptor(&cfg).Unary()

	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: methodListGrounds}

	t.Run("Success", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "kiosk-key", "x-api-extra", "kiosk-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs())
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "invalid", "x-api-extra", "kiosk-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "kiosk-key", "x-api-extra", "invalid")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "kiosk-key", "x-api-extra", "kiosk-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: methodGetAvailability}, handler)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("EmptyPermissionsAllowAll", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "open-key", "x-api-extra", "open-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", &grpc.UnaryServerInfo{FullMethod: methodGetAvailability}, handler)
		assert.NoError(t, err)
	})
}

func TestAuthInterceptor_Disabled(t *testing.T) {
	cfg := kioskAPIConfig()
	cfg.Enabled = false
	interceptor := NewAuthInterceptor(&cfg).Unary()

	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: methodGetAvailability},
		func(_ context.Context, req any) (any, error) { return "ok", nil })
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth:    config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{
			RPS:   1,
			Burst: 1,
		},
	}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	from := func(ip string, port int, key string) context.Context {
		ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: port}})
		return metadata.NewIncomingContext(ctx, metadata.Pairs("x-api-key", key))
	}

	_, err := interceptor(from("10.0.0.1", 4000, "key1"), "req", info, handler)
	assert.NoError(t, err)

	// Unchecked keys and new connections from the same host share a bucket.
	_, err = interceptor(from("10.0.0.1", 4001, "key2"), "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = interceptor(from("10.0.0.2", 4000, "key1"), "req", info, handler)
	assert.NoError(t, err)
}

func TestAuthInterceptor_RateLimitPerKiosk(t *testing.T) {
	cfg := kioskAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: methodListGrounds}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }
	kioskCtx := func(key, extra string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", key, "x-api-extra", extra))
	}

	_, err := interceptor(kioskCtx("kiosk-key", "kiosk-extra"), "req", info, handler)
	assert.NoError(t, err)
	_, err = interceptor(kioskCtx("kiosk-key", "kiosk-extra"), "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// Rejected keys never reach the limiter.
	_, err = interceptor(kioskCtx("made-up", "x"), "req", info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = interceptor(kioskCtx("open-key", "open-extra"), "req", info, handler)
	assert.NoError(t, err)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}

	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "test"}, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(nil)
	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "test"},
		func(context.Context, any) (any, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptors_Order(t *testing.T) {
	var order []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}

	chained := ChainUnaryInterceptors(mark("first"), mark("second"))
	_, err := chained(context.Background(), "req", &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"/playchrono.availability.v1.AvailabilityService/GetAvailability", "read:availability"},
		{"/playchrono.availability.v1.AvailabilityService/ListGrounds", "read:grounds"},
		{"other", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, requiredPermission(tt.method))
	}
}

func TestLoggingUnaryInterceptor_ReportsKiosk(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	cfg := kioskAPIConfig()
	chain := ChainUnaryInterceptors(LoggingUnaryInterceptor(&logger), NewAuthInterceptor(&cfg).Unary())

	md := metadata.Pairs("x-api-key", "kiosk-key", "x-api-extra", "kiosk-extra", "x-request-id", "req-42")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	_, err := chain(ctx, "req", &grpc.UnaryServerInfo{FullMethod: methodListGrounds},
		func(_ context.Context, req any) (any, error) { return "ok", nil })
	assert.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"kiosk":"library kiosk"`)
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"code":"OK"`)
}

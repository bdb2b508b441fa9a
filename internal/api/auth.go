package api

import (
	"context"
	"crypto/subtle"
	"net"
	"strings"
	"time"

	"playchrono/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	permReadAvailability  = "read:availability"
	permReadGrounds       = "read:grounds"
	clientKeyUnknown      = "unknown"
	requestIDMetadataKey  = "x-request-id"
)

// kiosk is a configured API key with its permissions resolved.
type kiosk struct {
	name  string
	extra []byte
	// nil grants every permission
	perms map[string]struct{}
}

func (k kiosk) may(perm string) bool {
	if perm == "" || k.perms == nil {
		return true
	}
	_, ok := k.perms[perm]
	return ok
}

// AuthInterceptor admits kiosks of the gRPC API by static key pair and
// throttles each caller with its own token bucket.
type AuthInterceptor struct {
	enabled     bool
	checkKeys   bool
	keyHeader   string
	extraHeader string
	kiosks      map[string]kiosk
	limiter     *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	kiosks := make(map[string]kiosk, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		entry := kiosk{name: k.Name, extra: []byte(k.Extra)}
		if len(k.Permissions) > 0 {
			entry.perms = make(map[string]struct{}, len(k.Permissions))
			for _, p := range k.Permissions {
				entry.perms[strings.TrimSpace(p)] = struct{}{}
			}
		}
		kiosks[k.Key] = entry
	}

	return &AuthInterceptor{
		enabled:     cfg.Enabled,
		checkKeys:   cfg.Auth.Enabled,
		keyHeader:   headerName(cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault),
		extraHeader: headerName(cfg.Auth.HeaderExtra, apiExtraHeaderDefault),
		kiosks:      kiosks,
		limiter:     newRateLimiter(cfg.RateLimit),
	}
}

func headerName(configured, fallback string) string {
	if h := strings.ToLower(strings.TrimSpace(configured)); h != "" {
		return h
	}
	return fallback
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.enabled {
			return handler(ctx, req)
		}

		caller := peerHost(ctx)
		if a.checkKeys {
			k, err := a.admit(ctx, info.FullMethod)
			if err != nil {
				return nil, err
			}
			if call := callFrom(ctx); call != nil {
				call.kiosk = k.name
			}
			caller = "kiosk:" + k.name
		}
		if err := a.throttle(caller); err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// admit resolves the calling kiosk and checks it may invoke fullMethod.
func (a *AuthInterceptor) admit(ctx context.Context, fullMethod string) (kiosk, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return kiosk{}, status.Error(codes.Unauthenticated, "missing metadata")
	}

	key := first(md.Get(a.keyHeader))
	extra := first(md.Get(a.extraHeader))
	if key == "" || extra == "" {
		return kiosk{}, status.Error(codes.Unauthenticated, "missing api key headers")
	}

	k, ok := a.kiosks[key]
	if !ok {
		return kiosk{}, status.Error(codes.Unauthenticated, "invalid api key")
	}
	if subtle.ConstantTimeCompare(k.extra, []byte(extra)) != 1 {
		return kiosk{}, status.Error(codes.Unauthenticated, "invalid extra header")
	}
	if !k.may(requiredPermission(fullMethod)) {
		return kiosk{}, status.Error(codes.PermissionDenied, "permission denied")
	}
	return k, nil
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case methodGetAvailability:
		return permReadAvailability
	case methodListGrounds:
		return permReadGrounds
	default:
		return ""
	}
}

// throttle spends a token from caller's bucket. Callers are admitted kiosks
// or, without key checks, peer hosts.
func (a *AuthInterceptor) throttle(caller string) error {
	if !a.limiter.enabled() {
		return nil
	}
	if !a.limiter.getLimiter(caller).Allow() {
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func peerHost(ctx context.Context) string {
	addr := peerAddr(ctx)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// grpcCall collects what inner interceptors learn about a call so the
// logging interceptor can report it.
type grpcCall struct {
	kiosk string
}

type grpcCallKey struct{}

func callFrom(ctx context.Context) *grpcCall {
	call, _ := ctx.Value(grpcCallKey{}).(*grpcCall)
	return call
}

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		call := &grpcCall{}
		ctx = context.WithValue(ctx, grpcCallKey{}, call)

		start := time.Now()
		resp, err := handler(ctx, req)

		event := base.Info()
		if err != nil && status.Code(err) == codes.Internal {
			event = base.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", peerAddr(ctx)).
			Str("kiosk", call.kiosk).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if id := first(md.Get(requestIDMetadataKey)); id != "" {
		return id
	}
	return uuid.NewString()
}

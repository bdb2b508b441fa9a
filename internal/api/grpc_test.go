package api

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"playchrono/internal/calendar"
	"playchrono/internal/config"
	"playchrono/internal/domain"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubResolver struct {
	grounds []models.Ground
	avail   []models.GroundAvailability
	err     error
	gotDate calendar.Date
}

func (r *stubResolver) Grounds() []models.Ground { return r.grounds }

func (r *stubResolver) GetAvailability(_ context.Context, sport string, date calendar.Date) ([]models.GroundAvailability, error) {
	r.gotDate = date
	if r.err != nil {
		return nil, r.err
	}
	return r.avail, nil
}

func newBufconnClient(t *testing.T, cfg *config.APIConfig, resolver AvailabilityResolver) *AvailabilityClient {
	t.Helper()
	logger := zerolog.New(io.Discard)
	lis := bufconn.Listen(1 << 20)

	srv, err := newGRPCServer(cfg, resolver, lis, &logger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewAvailabilityClient(conn)
}

func kioskContext() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "open-key", "x-api-extra", "open-extra")
}

func TestGRPC_GetAvailability(t *testing.T) {
	cfg := kioskAPIConfig()
	resolver := &stubResolver{avail: []models.GroundAvailability{{
		GroundID:   "main-field",
		GroundName: "Main Field",
		Slots: []models.Slot{
			{ID: "s1", Time: "06:00 - 07:30", Start: "06:00", End: "07:30", Status: models.SlotBooked},
			{ID: "s2", Time: "14:00 - 15:30", Start: "14:00", End: "15:30", Status: models.SlotAvailable},
		},
		AvailableCount: 1,
	}}}
	client := newBufconnClient(t, &cfg, resolver)

	grounds, err := client.GetAvailability(kioskContext(), "Cricket", calendar.MustParseDate("2025-06-16"))
	require.NoError(t, err)
	require.Len(t, grounds, 1)
	assert.Equal(t, resolver.avail[0], grounds[0])
	assert.NoError(t, grounds[0].Validate())
	assert.Equal(t, calendar.MustParseDate("2025-06-16"), resolver.gotDate)
}

func TestGRPC_ListGrounds(t *testing.T) {
	cfg := kioskAPIConfig()
	client := newBufconnClient(t, &cfg, &stubResolver{grounds: testGrounds()})

	md := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "kiosk-key", "x-api-extra", "kiosk-extra")
	grounds, err := client.ListGrounds(md)
	require.NoError(t, err)
	assert.Equal(t, testGrounds(), grounds)

	// The kiosk key may list grounds but not read availability.
	_, err = client.GetAvailability(md, "Cricket", calendar.MustParseDate("2025-06-16"))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGRPC_Errors(t *testing.T) {
	cfg := kioskAPIConfig()
	resolver := &stubResolver{}
	client := newBufconnClient(t, &cfg, resolver)

	_, err := client.ListGrounds(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.GetAvailability(kioskContext(), "", calendar.MustParseDate("2025-06-16"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resolver.err = domain.ValidationError{Field: "sport", Msg: "sport is required"}
	_, err = client.GetAvailability(kioskContext(), "Cricket", calendar.MustParseDate("2025-06-16"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resolver.err = errors.New("disk I/O error")
	_, err = client.GetAvailability(kioskContext(), "Cricket", calendar.MustParseDate("2025-06-16"))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestAvailabilityService_BadDate(t *testing.T) {
	svc := NewAvailabilityService(&stubResolver{})
	req, err := structpb.NewStruct(map[string]any{"sport": "Cricket", "date": "2025/06/16"})
	require.NoError(t, err)

	_, err = svc.GetAvailability(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	empty, err := svc.GetAvailability(context.Background(), mustStruct(t, map[string]any{"sport": "Curling", "date": "2025-06-16"}))
	require.NoError(t, err)
	assert.Empty(t, empty.GetFields()["grounds"].GetListValue().GetValues())
	assert.Equal(t, "2025-06-16", empty.GetFields()["date"].GetStringValue())
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestKioskCredentials_Errors(t *testing.T) {
	_, err := kioskCredentials(config.APITLSConfig{Enabled: true})
	assert.ErrorContains(t, err, "cert_file/key_file")

	_, err = kioskCredentials(config.APITLSConfig{Enabled: true, CertFile: "missing.crt", KeyFile: "missing.key"})
	assert.ErrorContains(t, err, "load grpc tls keypair")
}

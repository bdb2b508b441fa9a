package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(ctx context.Context) (*http.ServeMux, *httptest.Server, *SheetsService) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	srv, _ := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	return mux, server, newSheetsService(srv, "bookings_tid", "", nil)
}

func testBooking(id string) *models.Booking {
	return &models.Booking{
		ID:            id,
		CaptainID:     "cap-1",
		CaptainName:   "Ravi",
		TeamName:      "Strikers",
		SportType:     "Cricket",
		GroundID:      "main-field",
		GroundName:    "Main Field",
		Date:          calendar.MustParseDate("2025-06-16"),
		SelectedSlots: []string{"06:00 - 07:30", "14:00 - 15:30"},
		Purpose:       "Practice",
		Status:        models.StatusConfirmed,
		CreatedAt:     time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"Booking ID"}}})
	})
	if err := s.TestConnection(ctx); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestSheetsService_TestConnection_Error(t *testing.T) {
	ctx := context.Background()
	_, server, s := setupMockServer(ctx)
	defer server.Close()
	if err := s.TestConnection(ctx); err == nil {
		t.Error("expected error for missing sheet")
	}
}

func TestSheetsService_EnsureHeader(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	var got sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1:J1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	if err := s.EnsureHeader(ctx); err != nil {
		t.Fatalf("EnsureHeader failed: %v", err)
	}
	if len(got.Values) != 1 || len(got.Values[0]) != 10 || got.Values[0][0] != "Booking ID" {
		t.Errorf("unexpected header row: %v", got.Values)
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"Booking ID"}, {"b-123"}, {}, {"b-456"}},
		})
	})
	if err := s.WarmUpCache(ctx); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow("b-123"); !ok || row != 2 {
		t.Errorf("Expected row 2 for b-123, got %d", row)
	}
	if row, ok := s.getCachedRow("b-456"); !ok || row != 4 {
		t.Errorf("Expected row 4 for b-456, got %d", row)
	}
	if _, ok := s.getCachedRow("Booking ID"); ok {
		t.Error("header must not be cached")
	}
}

func TestSheetsService_UpsertBooking_Append(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"Booking ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Bookings!A10:J10"},
		})
	})
	if err := s.UpsertBooking(ctx, testBooking("b-789")); err != nil {
		t.Fatalf("UpsertBooking failed: %v", err)
	}
	if row, _ := s.getCachedRow("b-789"); row != 10 {
		t.Errorf("Expected cached row 10, got %d", row)
	}
}

func TestSheetsService_UpsertBooking_Update(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	s.setCachedRow("b-123", 2)
	var got sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A2:J2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	if err := s.UpsertBooking(ctx, testBooking("b-123")); err != nil {
		t.Fatalf("UpsertBooking failed: %v", err)
	}
	if len(got.Values) != 1 || got.Values[0][3] != "06:00 - 07:30, 14:00 - 15:30" {
		t.Errorf("unexpected row written: %v", got.Values)
	}
}

func TestSheetsService_UpsertBooking_Nil(t *testing.T) {
	ctx := context.Background()
	_, server, s := setupMockServer(ctx)
	defer server.Close()
	if err := s.UpsertBooking(ctx, nil); err == nil {
		t.Error("expected error for nil booking")
	}
}

func TestSheetsService_DeleteBookingRow(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	s.setCachedRow("b-456", 3)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A3:J3:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	if err := s.DeleteBookingRow(ctx, "b-456"); err != nil {
		t.Fatalf("DeleteBookingRow failed: %v", err)
	}
	if _, ok := s.getCachedRow("b-456"); ok {
		t.Error("Expected b-456 to be removed from cache")
	}
}

func TestSheetsService_DeleteBookingRow_Missing(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"Booking ID"}, {"b-1"}}})
	})
	if err := s.DeleteBookingRow(ctx, "b-gone"); err != nil {
		t.Errorf("deleting a missing row should be a no-op, got %v", err)
	}
}

func TestSheetsService_FindBookingRow_FullScan(t *testing.T) {
	ctx := context.Background()
	mux, server, s := setupMockServer(ctx)
	defer server.Close()
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"Booking ID"}, {"b-999"}},
		})
	})
	row, err := s.FindBookingRow(ctx, "b-999")
	if err != nil {
		t.Fatalf("FindBookingRow failed: %v", err)
	}
	if row != 2 {
		t.Errorf("Expected row 2, got %d", row)
	}
	if cached, ok := s.getCachedRow("b-999"); !ok || cached != 2 {
		t.Errorf("Expected cached row 2, got %d", cached)
	}

	if _, err := s.FindBookingRow(ctx, ""); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestRowFromRange(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Bookings!A10:J10", 10, true},
		{"Bookings!A2", 2, true},
		{"A7:J7", 7, true},
		{"Bookings!A:A", 0, false},
	}
	for _, tt := range tests {
		got, ok := rowFromRange(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("rowFromRange(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBookingRowValues(t *testing.T) {
	row := bookingRowValues(testBooking("b-1"))
	want := []interface{}{
		"b-1", "2025-06-16", "Main Field", "06:00 - 07:30, 14:00 - 15:30", "Cricket",
		"Strikers", "Ravi", "Practice", "confirmed", "2025-06-15 09:30:00",
	}
	if len(row) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(row))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d: got %v, want %v", i, row[i], want[i])
		}
	}
}

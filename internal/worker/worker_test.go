package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/database"
	"playchrono/internal/domain"
	"playchrono/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var _ domain.SyncWorker = (*SheetsWorker)(nil)

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
		SelectedSlots: []string{"06:00 - 07:30"},
		Purpose:       "Practice",
		Status:        models.StatusConfirmed,
		CreatedAt:     time.Now(),
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking("b-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 || sheets.lastUpsert != "b-1" {
		t.Fatalf("expected upsert of b-1, got %d calls (%q)", sheets.upsertCalls, sheets.lastUpsert)
	}
}

func TestProcessTaskDelete(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskDelete, testBooking("b-9")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()

	var payload sheetTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Booking != nil {
		t.Fatalf("delete payload should carry only the id")
	}

	worker.processTask(ctx, &task)
	if sheets.deleteCalls != 1 || sheets.lastDelete != "b-9" {
		t.Fatalf("expected delete of b-9, got %d calls (%q)", sheets.deleteCalls, sheets.lastDelete)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: 10 * time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking("b-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}

	// Not due yet, so polling must not return it.
	pending, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no due tasks, got %d", len(pending))
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking("b-3")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}

	failed, err := db.GetFailedSyncTasks(ctx)
	if err != nil {
		t.Fatalf("failed tasks: %v", err)
	}
	if len(failed) != 1 || failed[0].LastError == nil || *failed[0].LastError != "fatal" {
		t.Fatalf("expected one failed task with last_error=fatal, got %+v", failed)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 5}, nil)

	ctx := context.Background()
	task := models.SyncTask{TaskType: TaskUpsert, BookingID: "b-4", Payload: "not json", Status: models.SyncStatusPending}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("undecodable payload should fail immediately, got %s", status)
	}
	if sheets.upsertCalls != 0 {
		t.Fatalf("sheet must not be touched")
	}
}

func TestSheetsWorker_HandleSheetTask(t *testing.T) {
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(nil, sheets, nil, RetryPolicy{MaxRetries: 3}, nil)
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{Booking: testBooking("b-1")})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpsertMissingBooking", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{BookingID: "b-1"}); err == nil {
			t.Fatalf("expected error for missing booking")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, TaskDelete, sheetTaskPayload{BookingID: "b-123"})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.deleteCalls != 1 {
			t.Fatalf("expected 1 delete call, got %d", sheets.deleteCalls)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, "update_status", sheetTaskPayload{BookingID: "b-1"}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
	if d0 := (RetryPolicy{}).NextDelay(0); d0 != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d0)
	}
}

func TestRetryPolicyJitter(t *testing.T) {
	policy := RetryPolicy{InitialDelay: 4 * time.Second, BackoffFactor: 2, Jitter: 0.5}

	if d := policy.delay(1, func() float64 { return 0 }); d != 4*time.Second {
		t.Fatalf("no jitter draw expected 4s, got %s", d)
	}
	if d := policy.delay(1, func() float64 { return 1 }); d != 2*time.Second {
		t.Fatalf("full jitter draw expected 2s, got %s", d)
	}
	for i := 0; i < 50; i++ {
		d := policy.NextDelay(2)
		if d < 4*time.Second || d > 8*time.Second {
			t.Fatalf("jittered delay out of range: %s", d)
		}
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	if policy.Exhausted(2) {
		t.Fatalf("attempt 2 of 3 should retry")
	}
	if !policy.Exhausted(3) {
		t.Fatalf("attempt 3 of 3 should fail")
	}
	if (RetryPolicy{}).Exhausted(100) {
		t.Fatalf("zero budget never exhausts")
	}
}

func TestSheetsWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking("b-1")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", testBooking("b-1")); err == nil {
			t.Fatalf("expected error for empty task type")
		}
		if err := worker.EnqueueTask(ctx, "resync", testBooking("b-1")); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})

	t.Run("InvalidBooking", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, nil); err == nil {
			t.Fatalf("expected error for nil booking")
		}
		if err := worker.EnqueueTask(ctx, TaskUpsert, &models.Booking{}); err == nil {
			t.Fatalf("expected error for missing booking id")
		}
	})
}

func TestSheetsWorker_RedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, rdb, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking("b-5")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.tryLocalQueue(); ok {
		t.Fatalf("task should go to redis, not the local queue")
	}
	if n, _ := rdb.LLen(ctx, "sheets:queue").Result(); n != 1 {
		t.Fatalf("expected 1 task in redis, got %d", n)
	}

	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	if task.BookingID != "b-5" {
		t.Fatalf("unexpected task: %+v", task)
	}
	worker.processTask(ctx, &task)
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
}

func TestSheetsWorker_DeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{err: errors.New("quota exceeded")}, rdb, RetryPolicy{MaxRetries: 1}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking("b-6")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	worker.processTask(ctx, &task)

	items, err := rdb.LRange(ctx, "sheets:deadletter", 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one dead-lettered task, got %d", len(items))
	}
	var dead models.SyncTask
	if err := json.Unmarshal([]byte(items[0]), &dead); err != nil {
		t.Fatalf("decode deadletter: %v", err)
	}
	if dead.BookingID != "b-6" {
		t.Fatalf("unexpected dead letter: %+v", dead)
	}
}

func TestSheetsWorker_RedisDownFallsBackToMemory(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, rdb, RetryPolicy{}, nil)

	if err := worker.EnqueueTask(context.Background(), TaskUpsert, testBooking("b-7")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if task, ok := worker.tryLocalQueue(); !ok || task.BookingID != "b-7" {
		t.Fatalf("expected task in local queue after redis failure")
	}
}

func TestSheetsWorker_StartProcessesPendingAndStops(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	logger := zerolog.New(io.Discard)
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, &logger)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	// Persisted but never queued, as after a restart.
	task := models.SyncTask{TaskType: TaskDelete, BookingID: "b-8", Payload: `{"booking_id":"b-8"}`, Status: models.SyncStatusPending}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sheets.deletes() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
	if sheets.deletes() != 1 {
		t.Fatalf("expected polled task to be processed once, got %d", sheets.deletes())
	}
}

func TestSheetsWorker_DecodePayload(t *testing.T) {
	worker := NewSheetsWorker(nil, nil, nil, RetryPolicy{}, nil)

	t.Run("ValidPayload", func(t *testing.T) {
		decoded, err := worker.decodePayload(`{"booking_id":"b-123"}`)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.BookingID != "b-123" || decoded.Booking != nil {
			t.Fatalf("unexpected decoded payload: %+v", decoded)
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		if _, err := worker.decodePayload(`invalid json`); err == nil {
			t.Fatalf("expected error for invalid json")
		}
	})
}

// Helpers

type fakeSheets struct {
	mu          sync.Mutex
	err         error
	upsertCalls int
	deleteCalls int
	lastUpsert  string
	lastDelete  string
}

func (f *fakeSheets) UpsertBooking(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.lastUpsert = b.ID
	return f.err
}

func (f *fakeSheets) DeleteBookingRow(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	f.lastDelete = id
	return f.err
}

func (f *fakeSheets) deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}

// Package feed merges notices and today's bookings into the daily scoop.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"playchrono/internal/metrics"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
)

const (
	SourceNotices  = "notices"
	SourceBookings = "bookings"
)

// Build tags each item and places all notices before all bookings, keeping
// the order of each input.
func Build(notices []models.Notice, bookings []models.Booking) []models.FeedItem {
	items := make([]models.FeedItem, 0, len(notices)+len(bookings))
	for _, n := range notices {
		items = append(items, models.NoticeItem(n))
	}
	for _, b := range bookings {
		items = append(items, models.BookingItem(b))
	}
	return items
}

type NoticeSource func(ctx context.Context) ([]models.Notice, error)
type BookingSource func(ctx context.Context) ([]models.Booking, error)

// Result is an assembled feed plus the sources that could not be read.
type Result struct {
	Items  []models.FeedItem `json:"items"`
	Failed []string          `json:"failedSources,omitempty"`
}

// Aggregator fetches both sources concurrently. A failing source is logged
// and skipped; the other source's items are still returned.
type Aggregator struct {
	notices  NoticeSource
	bookings BookingSource
	logger   *zerolog.Logger
}

func NewAggregator(notices NoticeSource, bookings BookingSource, logger *zerolog.Logger) *Aggregator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Aggregator{notices: notices, bookings: bookings, logger: logger}
}

// Aggregate returns an error only when every source failed.
func (a *Aggregator) Aggregate(ctx context.Context) (Result, error) {
	var (
		wg          sync.WaitGroup
		notices     []models.Notice
		bookings    []models.Booking
		noticeErr   error
		bookingsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		notices, noticeErr = fetch(ctx, a.notices)
	}()
	go func() {
		defer wg.Done()
		bookings, bookingsErr = fetch(ctx, a.bookings)
	}()
	wg.Wait()

	var res Result
	if noticeErr != nil {
		a.sourceFailed(SourceNotices, noticeErr)
		res.Failed = append(res.Failed, SourceNotices)
		notices = nil
	}
	if bookingsErr != nil {
		a.sourceFailed(SourceBookings, bookingsErr)
		res.Failed = append(res.Failed, SourceBookings)
		bookings = nil
	}

	res.Items = Build(notices, bookings)
	if noticeErr != nil && bookingsErr != nil {
		return res, errors.Join(noticeErr, bookingsErr)
	}
	return res, nil
}

func (a *Aggregator) sourceFailed(source string, err error) {
	metrics.IncFeedSourceFailure(source)
	a.logger.Warn().Err(err).Str("source", source).Msg("feed source failed")
}

// fetch runs a source and turns a panic or a missing source into an error so
// it cannot take the other fetch down.
func fetch[T any](ctx context.Context, src func(context.Context) ([]T, error)) (items []T, err error) {
	if src == nil {
		return nil, errors.New("source not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source panic: %v", r)
		}
	}()
	return src(ctx)
}

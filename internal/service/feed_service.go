package service

import (
	"context"

	"playchrono/internal/feed"

	"github.com/rs/zerolog"
)

// FeedService assembles the daily scoop from notices and today's bookings.
type FeedService struct {
	aggregator *feed.Aggregator
}

func NewFeedService(notices *NoticeService, bookings *BookingService, logger *zerolog.Logger) *FeedService {
	return &FeedService{
		aggregator: feed.NewAggregator(notices.ListNotices, bookings.TodayBookings, logger),
	}
}

func (s *FeedService) Daily(ctx context.Context) (feed.Result, error) {
	return s.aggregator.Aggregate(ctx)
}

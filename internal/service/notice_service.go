package service

import (
	"context"
	"fmt"
	"strings"

	"playchrono/internal/domain"
	"playchrono/internal/events"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
)

type NoticeService struct {
	repo     domain.NoticeRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewNoticeService(repo domain.NoticeRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *NoticeService {
	return &NoticeService{repo: repo, eventBus: eventBus, logger: logger}
}

// ListNotices returns notices newest first.
func (s *NoticeService) ListNotices(ctx context.Context) ([]models.Notice, error) {
	notices, err := s.repo.ListNotices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	return notices, nil
}

func (s *NoticeService) CreateNotice(ctx context.Context, actor *models.Session, req models.NoticeRequest) (*models.Notice, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	if !actor.HasRole(models.RoleCaptain, models.RoleAdmin) {
		return nil, domain.ErrForbidden
	}

	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	if title == "" {
		return nil, domain.ValidationError{Field: "title", Msg: "title is required"}
	}
	if message == "" {
		return nil, domain.ValidationError{Field: "message", Msg: "message is required"}
	}

	authorName := actor.Username
	if actor.HasRole(models.RoleAdmin) && strings.TrimSpace(req.UserName) != "" {
		authorName = strings.TrimSpace(req.UserName)
	}

	notice := &models.Notice{
		Title:     title,
		Message:   message,
		CreatedBy: models.NoticeAuthor{ID: actor.UserID, Name: authorName},
	}
	if err := s.repo.CreateNotice(ctx, notice); err != nil {
		return nil, fmt.Errorf("create notice: %w", err)
	}

	if s.eventBus != nil {
		payload := events.NoticeEventPayload{
			NoticeID:   notice.ID,
			Title:      notice.Title,
			Message:    notice.Message,
			AuthorName: notice.CreatedBy.Name,
		}
		if err := s.eventBus.PublishJSON(events.EventNoticeCreated, payload); err != nil {
			s.logger.Error().Err(err).Str("notice_id", notice.ID).Msg("publish event error")
		}
	}
	return notice, nil
}

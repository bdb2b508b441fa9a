// Package notify posts booking and notice announcements to staff Telegram chats.
package notify

import (
	"context"
	"fmt"
	"strings"

	"playchrono/internal/config"
	"playchrono/internal/domain"
	"playchrono/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// NewTelegramSender connects to the Bot API with the configured token.
func NewTelegramSender(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// Announcer turns domain events into chat messages. Messages are sent inline
// until Start is called; after that they are queued and sent by a background
// goroutine so publishers never wait on Telegram.
type Announcer struct {
	sender  domain.TelegramSender
	chatIDs []int64
	logger  zerolog.Logger
	outbox  chan string
}

func NewAnnouncer(sender domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Announcer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "notify").Logger()
	}
	return &Announcer{
		sender:  sender,
		chatIDs: append([]int64(nil), chatIDs...),
		logger:  base,
	}
}

// Start switches the announcer to queued delivery and drains the queue until
// ctx is done. Call it before the announcer receives events.
func (a *Announcer) Start(ctx context.Context) {
	a.outbox = make(chan string, 64)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case text := <-a.outbox:
				a.send(text)
			}
		}
	}()
}

// Subscribe registers the announcer on the bus.
func (a *Announcer) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, a.handleBookingCreated)
	bus.Subscribe(events.EventBookingCanceled, a.handleBookingCanceled)
	bus.Subscribe(events.EventNoticeCreated, a.handleNoticeCreated)
}

func (a *Announcer) handleBookingCreated(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		a.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event")
		return nil
	}
	a.broadcast(bookingCreatedText(p))
	return nil
}

func (a *Announcer) handleBookingCanceled(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		a.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event")
		return nil
	}
	a.broadcast(bookingCanceledText(p))
	return nil
}

func (a *Announcer) handleNoticeCreated(event *events.Event) error {
	var p events.NoticeEventPayload
	if err := event.Decode(&p); err != nil {
		a.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event")
		return nil
	}
	a.broadcast(noticeText(p))
	return nil
}

func (a *Announcer) broadcast(text string) {
	if a.outbox == nil {
		a.send(text)
		return
	}
	select {
	case a.outbox <- text:
	default:
		a.logger.Warn().Msg("announcement queue full, message dropped")
	}
}

// send delivers text to every chat. Failures are logged per chat.
func (a *Announcer) send(text string) {
	for _, chatID := range a.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := a.sender.Send(msg); err != nil {
			a.logger.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
		}
	}
}

func bookingCreatedText(p events.BookingEventPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New booking: %s on %s\n", p.GroundName, p.Date)
	fmt.Fprintf(&b, "Slots: %s\n", strings.Join(p.Slots, ", "))
	fmt.Fprintf(&b, "Sport: %s\n", p.SportType)
	fmt.Fprintf(&b, "Captain: %s", p.CaptainName)
	if p.TeamName != "" {
		fmt.Fprintf(&b, " (%s)", p.TeamName)
	}
	b.WriteString("\n")
	if p.Purpose != "" {
		fmt.Fprintf(&b, "Purpose: %s\n", p.Purpose)
	}
	fmt.Fprintf(&b, "ID: %s", p.BookingID)
	return b.String()
}

func bookingCanceledText(p events.BookingEventPayload) string {
	text := fmt.Sprintf("Booking canceled: %s on %s\nSlots: %s\nCaptain: %s\nID: %s",
		p.GroundName, p.Date, strings.Join(p.Slots, ", "), p.CaptainName, p.BookingID)
	if p.ChangedBy != "" && p.ChangedByID != p.CaptainID {
		text += "\nCanceled by: " + p.ChangedBy
	}
	return text
}

func noticeText(p events.NoticeEventPayload) string {
	text := "Notice: " + p.Title
	if p.Message != "" {
		text += "\n" + p.Message
	}
	if p.AuthorName != "" {
		text += "\n- " + p.AuthorName
	}
	return text
}

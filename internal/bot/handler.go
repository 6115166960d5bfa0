package bot

import (
	"context"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
)

const (
	evictInterval  = 10 * time.Minute
	maxSessionIdle = 2 * time.Hour
)

// Handler connects a Dispatcher to Telegram.
type Handler struct {
	bot        *tgbot.Bot
	dispatcher *Dispatcher
	log        logrus.FieldLogger
}

// NewHandler creates a new bot handler instance.
func NewHandler(token string, dispatcher *Dispatcher, logger logrus.FieldLogger) (*Handler, error) {
	log := logger.WithField("component", "bot_handler")

	h := &Handler{dispatcher: dispatcher, log: log}

	b, err := tgbot.New(token, tgbot.WithDefaultHandler(h.textHandler))
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b

	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, favCallbackPrefix, tgbot.MatchTypePrefix, h.callbackHandler)

	log.Info("Telegram bot handler initialized")
	return h, nil
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	go h.dispatcher.RunEviction(ctx, evictInterval, maxSessionIdle)

	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

func (h *Handler) textHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}
	log := h.log.WithFields(logrus.Fields{
		"user_id": update.Message.From.ID,
		"chat_id": update.Message.Chat.ID,
	})
	log.Debug("Received message")

	reply := h.dispatcher.HandleText(ctx, update.Message.From.ID, update.Message.Text)
	h.send(ctx, b, update.Message.Chat.ID, reply, log)
}

func (h *Handler) callbackHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	log := h.log.WithFields(logrus.Fields{
		"user_id":  cq.From.ID,
		"callback": cq.Data,
	})

	reply := h.dispatcher.HandleCallback(ctx, cq.From.ID, cq.Data)

	_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            truncate(reply.Notice, 200),
	})
	if err != nil {
		log.WithError(err).Error("Failed to answer callback query")
	}

	msg := cq.Message.Message
	if reply.List == nil || msg == nil {
		return
	}
	params := &tgbot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      reply.List.Text,
	}
	if len(reply.List.Buttons) > 0 {
		params.ReplyMarkup = keyboard(reply.List.Buttons)
	}
	if _, err := b.EditMessageText(ctx, params); err != nil {
		log.WithError(err).Warn("Failed to redraw story list")
	}
}

func (h *Handler) send(ctx context.Context, b *tgbot.Bot, chatID int64, reply Reply, log logrus.FieldLogger) {
	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   reply.Text,
	}
	if len(reply.Buttons) > 0 {
		params.ReplyMarkup = keyboard(reply.Buttons)
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		log.WithError(err).Error("Failed to send reply")
	}
}

// keyboard lays buttons out one per row.
func keyboard(buttons []Button) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, []models.InlineKeyboardButton{{Text: btn.Label, CallbackData: btn.Data}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

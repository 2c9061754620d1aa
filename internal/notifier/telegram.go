package notifier

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"backend/internal/config"
)

const maxPreviewLen = 200

// Telegram sends an alert message when a high-confidence spam email is
// detected. Sends are best effort: a delivery failure is logged and never
// surfaced to the prediction caller.
type Telegram struct {
	api           *tgbotapi.BotAPI
	chatID        int64
	minConfidence float64
	logger        *zap.Logger
}

// NewTelegram creates the alert notifier. Returns (nil, nil) when alerts are
// disabled or no token is configured.
func NewTelegram(cfg *config.Config, logger *zap.Logger) (*Telegram, error) {
	if !cfg.Alerts.Enabled || cfg.Alerts.TelegramBotToken == "" {
		logger.Info("Spam alerts are disabled (alerts.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Alerts.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram alert bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Telegram{
		api:           botAPI,
		chatID:        cfg.Alerts.ChatID,
		minConfidence: cfg.Alerts.MinConfidence,
		logger:        logger,
	}, nil
}

// SpamDetected posts an alert for the classification if its confidence
// clears the configured threshold.
func (t *Telegram) SpamDetected(text string, confidence float64, classificationID int64) {
	if confidence < t.minConfidence {
		return
	}

	preview := text
	if len(preview) > maxPreviewLen {
		preview = preview[:maxPreviewLen] + "…"
	}

	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf(
		"🚨 Spam detected (confidence %.2f, classification #%d):\n\n%s",
		confidence, classificationID, preview,
	))

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send spam alert",
			zap.Int64("classification_id", classificationID),
			zap.Error(err))
	}
}

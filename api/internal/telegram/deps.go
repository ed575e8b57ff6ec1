package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"artvision-bot/api/internal/store"
)

// Messenger is the part of *tgbotapi.BotAPI the router uses.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

var _ Messenger = (*tgbotapi.BotAPI)(nil)

// AuditLog records relayed predictions. *store.AuditRepo implements it.
type AuditLog interface {
	Insert(ctx context.Context, e store.AuditEntry) (int64, error)
	CountByChat(ctx context.Context, chatID int64) (int64, error)
	RecentByChat(ctx context.Context, chatID int64, limit int) ([]store.AuditEntry, error)
}

var _ AuditLog = (*store.AuditRepo)(nil)

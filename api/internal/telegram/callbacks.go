package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/zlog"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	msgID := cb.Message.MessageID

	switch {
	case strings.HasPrefix(cb.Data, cbMode):
		r.onModePicked(cid, msgID, strings.TrimPrefix(cb.Data, cbMode))
	case strings.HasPrefix(cb.Data, cbHistory):
		kind, page, ok := parseHistoryData(strings.TrimPrefix(cb.Data, cbHistory))
		if !ok {
			return
		}
		r.showHistoryPage(cid, msgID, kind, page)
	default:
		zlog.Debug("unknown callback", zap.Int64("chat_id", cid), zap.String("data", cb.Data))
	}
}

func (r *Router) onModePicked(chatID int64, msgID int, data string) {
	k, err := predict.ParseKind(data)
	if err != nil {
		return
	}
	r.state.setKind(chatID, k)
	edit := tgbotapi.NewEditMessageText(chatID, msgID, "Mode: "+kindTitle(k)+". Send a picture.")
	if _, err := r.Bot.Send(edit); err != nil {
		zlog.Warn("edit mode message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// parseHistoryData reads "<kind>:<page>".
func parseHistoryData(s string) (predict.Kind, int, bool) {
	ks, ps, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, false
	}
	k, err := predict.ParseKind(ks)
	if err != nil {
		return "", 0, false
	}
	page, err := strconv.Atoi(ps)
	if err != nil {
		return "", 0, false
	}
	return k, page, true
}

package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"artvision-bot/api/internal/history"
	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/zlog"
)

// handleHistory serves /history [kind] [page].
func (r *Router) handleHistory(chatID int64, args []string) {
	sess, ok := r.Sessions.Get(chatID)
	if !ok {
		r.send(chatID, "Log in first with /login <email> <password> to see your history.")
		return
	}
	groups, err := r.loadHistory(sess.User.ID)
	if err != nil {
		r.SendError(chatID, err)
		return
	}

	if len(args) == 0 {
		msg := tgbotapi.NewMessage(chatID, formatHistorySummary(groups))
		if kb, ok := makeHistoryKindKeyboard(groups); ok {
			msg.ReplyMarkup = kb
		}
		r.sendMsg(msg)
		return
	}

	k, err := predict.ParseKind(args[0])
	if err != nil {
		r.send(chatID, "Usage: /history [binary|multiclass|denoise|caption] [page]")
		return
	}
	page := 1
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			page = n
		}
	}
	p := history.Paginate(groups[k], page, history.DefaultPerPage)
	msg := tgbotapi.NewMessage(chatID, formatHistoryPage(k, p))
	if kb, ok := makeHistoryPageKeyboard(k, p); ok {
		msg.ReplyMarkup = kb
	}
	r.sendMsg(msg)
}

// showHistoryPage replaces an earlier history message with another page.
func (r *Router) showHistoryPage(chatID int64, msgID int, k predict.Kind, page int) {
	sess, ok := r.Sessions.Get(chatID)
	if !ok {
		r.send(chatID, "Your session has ended. Log in again with /login.")
		return
	}
	groups, err := r.loadHistory(sess.User.ID)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	p := history.Paginate(groups[k], page, history.DefaultPerPage)
	text := formatHistoryPage(k, p)

	var edit tgbotapi.Chattable
	if kb, ok := makeHistoryPageKeyboard(k, p); ok {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, msgID, text)
	}
	if _, err := r.Bot.Send(edit); err != nil {
		zlog.Warn("edit history message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) loadHistory(userID int64) (map[predict.Kind][]history.PredictionRecord, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	recs, err := r.History.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return history.GroupByKind(recs), nil
}

// handleRecent lists what this chat sent through the bot, from the audit log.
func (r *Router) handleRecent(chatID int64) {
	if r.Audit == nil {
		r.send(chatID, "The audit log is not enabled on this bot.")
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()

	total, err := r.Audit.CountByChat(ctx, chatID)
	if err != nil {
		zlog.Error("audit count", zap.Int64("chat_id", chatID), zap.Error(err))
		r.send(chatID, "⚠️ The audit log is unavailable right now.")
		return
	}
	entries, err := r.Audit.RecentByChat(ctx, chatID, 5)
	if err != nil {
		zlog.Error("audit recent", zap.Int64("chat_id", chatID), zap.Error(err))
		r.send(chatID, "⚠️ The audit log is unavailable right now.")
		return
	}
	if total == 0 {
		r.send(chatID, "No predictions relayed in this chat yet.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d predictions relayed in this chat. Latest:\n", total)
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s · %s · ", e.CreatedAt.UTC().Format("2006-01-02 15:04"), e.Kind)
		switch {
		case !e.OK():
			fmt.Fprintf(&b, "failed (%s)", e.ErrorKind)
		case e.Kind == string(predict.Denoising):
			b.WriteString(e.AssetURL)
		default:
			b.WriteString(e.Label)
			if c := formatConfidence(e.Confidence); c != "" {
				b.WriteString(" (" + c + ")")
			}
		}
	}
	r.send(chatID, b.String())
}

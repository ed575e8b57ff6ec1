package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"artvision-bot/api/internal/account"
	"artvision-bot/api/internal/apierr"
	"artvision-bot/api/internal/history"
	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/session"
	"artvision-bot/api/internal/zlog"
)

type Router struct {
	Bot      Messenger
	Predict  *predict.Client
	Accounts *account.Client
	History  *history.Client
	Sessions *session.Store
	Audit    AuditLog // optional

	// MaxPixels is the downscale budget for uploads; 0 sends images as received.
	MaxPixels int
	// HTTP downloads files from Telegram.
	HTTP *http.Client

	state chatState
	wg    sync.WaitGroup
}

// Wait blocks until every prediction started by the router has finished.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message

	if len(msg.Photo) > 0 && isCommandText(msg.Caption, "register") {
		r.registerWithPhoto(*msg)
		return
	}
	if msg.IsCommand() {
		r.HandleCommand(*msg)
		return
	}
	if len(msg.Photo) > 0 {
		r.acceptPhoto(*msg)
		return
	}
	if msg.Document != nil {
		r.acceptDocument(*msg)
		return
	}
	if strings.TrimSpace(msg.Text) != "" {
		r.send(msg.Chat.ID, "Send me a picture, or /help for the list of commands.")
	}
}

func (r *Router) HandleCommand(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		r.send(cid, startText)
	case "help":
		r.send(cid, helpText)
	case "login":
		r.handleLogin(msg, args)
	case "register":
		r.handleRegister(cid, args, nil)
	case "logout":
		r.handleLogout(cid)
	case "me":
		r.handleMe(cid)
	case "update":
		r.handleUpdateProfile(cid, args)
	case "mode":
		r.handleMode(cid, args)
	case "binary":
		r.switchKind(cid, predict.Binary)
	case "multiclass":
		r.switchKind(cid, predict.Multiclass)
	case "denoise", "denoising":
		r.switchKind(cid, predict.Denoising)
	case "caption", "captioning":
		r.switchKind(cid, predict.Captioning)
	case "history":
		r.handleHistory(cid, args)
	case "recent":
		r.handleRecent(cid)
	default:
		r.send(cid, "Unknown command. /help lists what I can do.")
	}
}

func (r *Router) handleMode(chatID int64, args []string) {
	if len(args) == 0 {
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Current mode: %s\nPick what I should do with your next picture:",
			kindTitle(r.state.kind(chatID))))
		msg.ReplyMarkup = makeModeKeyboard(r.state.kind(chatID))
		r.sendMsg(msg)
		return
	}
	k, err := predict.ParseKind(args[0])
	if err != nil {
		r.send(chatID, "Unknown mode. Use one of: binary, multiclass, denoise, caption.")
		return
	}
	r.switchKind(chatID, k)
}

func (r *Router) switchKind(chatID int64, k predict.Kind) {
	r.state.setKind(chatID, k)
	r.send(chatID, "Mode: "+kindTitle(k)+". Send a picture.")
}

func (r *Router) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Minute)
}

func (r *Router) send(chatID int64, text string) {
	r.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendMsg(msg tgbotapi.MessageConfig) {
	if _, err := r.Bot.Send(msg); err != nil {
		zlog.Warn("telegram send failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

// SendError reports err with the message a user can act on.
func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, "⚠️ "+errorText(err))
}

func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case apierr.Kind(err) == "client":
		return err.Error()
	default:
		return apierr.Message(err)
	}
}

// isCommandText reports whether text starts with /name (optionally /name@bot).
func isCommandText(text, name string) bool {
	f := strings.Fields(text)
	if len(f) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(strings.TrimPrefix(f[0], "/"), "@")
	return strings.HasPrefix(f[0], "/") && strings.EqualFold(cmd, name)
}

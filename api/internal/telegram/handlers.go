package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"artvision-bot/api/internal/account"
	"artvision-bot/api/internal/session"
	"artvision-bot/api/internal/zlog"
)

func (r *Router) handleLogin(msg tgbotapi.Message, args []string) {
	cid := msg.Chat.ID
	// the message carries a password
	if _, err := r.Bot.Request(tgbotapi.NewDeleteMessage(cid, msg.MessageID)); err != nil {
		zlog.Debug("delete login message", zap.Int64("chat_id", cid), zap.Error(err))
	}
	if len(args) != 2 {
		r.send(cid, "Usage: /login <email> <password>")
		return
	}

	ctx, cancel := r.ctx()
	defer cancel()
	res, err := r.Accounts.Login(ctx, args[0], args[1])
	if err != nil {
		zlog.Info("login failed", zap.Int64("chat_id", cid), zap.Error(err))
		r.SendError(cid, err)
		return
	}
	r.Sessions.Set(cid, session.FromLogin(res))
	zlog.Info("login", zap.Int64("chat_id", cid), zap.Int64("user_id", res.User.ID))
	r.send(cid, fmt.Sprintf("✅ Welcome %s!", displayName(res.User)))
}

// registerWithPhoto handles /register sent as the caption of a photo.
func (r *Router) registerWithPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	f := strings.Fields(msg.Caption)
	photo, err := r.downloadPhoto(msg.Photo)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.handleRegister(cid, f[1:], photo)
}

func (r *Router) handleRegister(chatID int64, args []string, photo []byte) {
	if len(args) != 3 {
		r.send(chatID, "Usage: /register <username> <email> <password>\nSend it as a photo caption to set a profile picture.")
		return
	}
	ctx, cancel := r.ctx()
	defer cancel()

	u, err := r.Accounts.Register(ctx, account.Registration{
		Username: args[0],
		Email:    args[1],
		Password: args[2],
		Photo:    photo,
	})
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	zlog.Info("registered", zap.Int64("chat_id", chatID), zap.Int64("user_id", u.ID))

	// same flow as the web page: the new account is logged in right away
	res, err := r.Accounts.Login(ctx, args[1], args[2])
	if err != nil {
		r.send(chatID, fmt.Sprintf("🎉 Account %s created. Log in with /login %s <password>.", u.Username, args[1]))
		return
	}
	r.Sessions.Set(chatID, session.FromLogin(res))
	r.send(chatID, fmt.Sprintf("🎉 Welcome %s, your account is ready and you are logged in.", displayName(res.User)))
}

func (r *Router) handleLogout(chatID int64) {
	if _, ok := r.Sessions.Get(chatID); !ok {
		r.send(chatID, "You are not logged in.")
		return
	}
	r.Sessions.Delete(chatID)
	r.send(chatID, "👋 Logged out.")
}

func (r *Router) handleMe(chatID int64) {
	sess, ok := r.Sessions.Get(chatID)
	if !ok {
		r.send(chatID, "You are not logged in. Use /login <email> <password>.")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\nEmail: %s\nUser ID: %d\n", sess.User.Username, sess.User.Email, sess.User.ID)
	if sess.User.PhotoProfil != "" {
		fmt.Fprintf(&b, "Photo: %s\n", sess.User.PhotoProfil)
	}
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "Session valid until %s\n", sess.ExpiresAt.UTC().Format(time.RFC1123))
	}
	fmt.Fprintf(&b, "Mode: %s", kindTitle(r.state.kind(chatID)))
	r.send(chatID, b.String())
}

// handleUpdateProfile takes key=value pairs; fields not given keep their
// current value.
func (r *Router) handleUpdateProfile(chatID int64, args []string) {
	sess, ok := r.Sessions.Get(chatID)
	if !ok {
		r.send(chatID, "Log in first with /login <email> <password>.")
		return
	}
	upd, err := parseProfileArgs(args, sess.User)
	if err != nil {
		r.send(chatID, err.Error()+"\nUsage: /update username=... email=... password=...")
		return
	}

	ctx, cancel := r.ctx()
	defer cancel()
	u, err := r.Accounts.UpdateProfile(ctx, sess.AccessToken, sess.User.ID, upd)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	if err := r.Sessions.UpdateUser(chatID, u); err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, fmt.Sprintf("✅ Profile updated: %s <%s>", u.Username, u.Email))
}

func parseProfileArgs(args []string, current account.User) (account.ProfileUpdate, error) {
	if len(args) == 0 {
		return account.ProfileUpdate{}, fmt.Errorf("nothing to update")
	}
	upd := account.ProfileUpdate{Username: current.Username, Email: current.Email}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || v == "" {
			return account.ProfileUpdate{}, fmt.Errorf("bad argument %q", a)
		}
		switch strings.ToLower(k) {
		case "username":
			upd.Username = v
		case "email":
			upd.Email = v
		case "password":
			upd.Password = v
		default:
			return account.ProfileUpdate{}, fmt.Errorf("unknown field %q", k)
		}
	}
	return upd, nil
}

func displayName(u account.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

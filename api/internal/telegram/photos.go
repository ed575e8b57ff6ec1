package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"artvision-bot/api/internal/apierr"
	"artvision-bot/api/internal/imaging"
	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/store"
	"artvision-bot/api/internal/util"
	"artvision-bot/api/internal/zlog"
)

// maxDownload bounds files fetched from Telegram (bots can download up to 20MB).
const maxDownload = 20 << 20

var (
	errNotAnImage = errors.New("this file is not an image, send a JPEG, PNG, GIF or WEBP")
	errDownload   = errors.New("could not download the file from Telegram, try again")
)

func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	img, err := r.downloadPhoto(msg.Photo)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.startPrediction(cid, img, "")
}

func (r *Router) acceptDocument(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	doc := msg.Document
	if doc.MimeType != "" && !strings.HasPrefix(doc.MimeType, "image/") {
		r.SendError(cid, errNotAnImage)
		return
	}
	if doc.FileSize > maxDownload {
		r.send(cid, "⚠️ This file is too large, the limit is 20 MB.")
		return
	}
	img, err := r.download(doc.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.startPrediction(cid, img, doc.FileName)
}

// downloadPhoto fetches the largest size of a photo.
func (r *Router) downloadPhoto(sizes []tgbotapi.PhotoSize) ([]byte, error) {
	if len(sizes) == 0 {
		return nil, predict.ErrEmptyImage
	}
	return r.download(sizes[len(sizes)-1].FileID)
}

func (r *Router) download(fileID string) ([]byte, error) {
	// the direct URL embeds the bot token: never put it in user-facing errors
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		zlog.Warn("telegram getFile", zap.String("file_id", fileID), zap.Error(err))
		return nil, errDownload
	}
	hc := r.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := hc.Get(url)
	if err != nil {
		zlog.Warn("telegram download", zap.String("file_id", fileID), zap.String("error", redact(err.Error(), url)))
		return nil, errDownload
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		zlog.Warn("telegram download", zap.String("file_id", fileID), zap.Int("status", resp.StatusCode))
		return nil, errDownload
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, errDownload
	}
	return b, nil
}

// startPrediction runs the chat's current kind on img in the background.
// Only the newest upload of a chat gets its answer; older ones are dropped.
func (r *Router) startPrediction(chatID int64, img []byte, filename string) {
	kind := r.state.kind(chatID)
	seq := r.state.nextSeq(chatID)

	prepared, mime, err := imaging.Fit(img, r.MaxPixels)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) {
			err = errNotAnImage
		}
		r.SendError(chatID, err)
		return
	}
	if orig, _ := imaging.Sniff(img); orig != mime || filename == "" {
		filename = "upload" + imaging.Extension(mime)
	}

	_, _ = r.Bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runPrediction(chatID, seq, predict.Request{Kind: kind, Image: prepared, Filename: filename})
	}()
}

func (r *Router) runPrediction(chatID, seq int64, req predict.Request) {
	ctx, cancel := r.ctx()
	defer cancel()

	client := r.Predict.WithSessionProvider(r.Sessions.Provider(chatID))
	start := time.Now()
	res, err := client.Submit(ctx, req)
	elapsed := time.Since(start)

	r.audit(chatID, req, res, err, elapsed)

	if !r.state.isLatest(chatID, seq) {
		zlog.Info("dropping stale prediction",
			zap.Int64("chat_id", chatID), zap.Int64("seq", seq), zap.String("kind", string(req.Kind)))
		return
	}
	if err != nil {
		zlog.Warn("prediction failed",
			zap.Int64("chat_id", chatID), zap.String("kind", string(req.Kind)),
			zap.String("error_kind", apierr.Kind(err)), zap.Error(err))
		r.SendError(chatID, err)
		return
	}
	zlog.Info("prediction",
		zap.Int64("chat_id", chatID), zap.String("kind", string(res.Kind)),
		zap.String("label", res.Label), zap.Duration("elapsed", elapsed))
	r.sendResult(chatID, res)
}

func (r *Router) sendResult(chatID int64, res predict.Result) {
	if res.Kind == predict.Denoising {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(res.ResultAssetURL))
		photo.Caption = "✨ Denoised image"
		_, err := r.Bot.Send(photo)
		if err == nil {
			return
		}
		zlog.Warn("send denoised photo", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	r.send(chatID, formatResult(res))
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<file url>")
}

func (r *Router) audit(chatID int64, req predict.Request, res predict.Result, err error, elapsed time.Duration) {
	if r.Audit == nil {
		return
	}
	e := store.AuditEntry{
		ChatID:     chatID,
		Kind:       string(req.Kind),
		ImageHash:  util.SHA256Hex(req.Image),
		Label:      res.Label,
		Confidence: res.Confidence,
		AssetURL:   res.ResultAssetURL,
		ErrorKind:  apierr.Kind(err),
		Duration:   elapsed,
	}
	if err != nil {
		e.ErrorMessage = errorText(err)
	}
	if id, _, ok := r.Sessions.Provider(chatID).Identity(); ok {
		e.UserID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := r.Audit.Insert(ctx, e); err != nil {
		zlog.Warn("audit insert", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

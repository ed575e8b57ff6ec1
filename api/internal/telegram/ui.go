package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"artvision-bot/api/internal/history"
	"artvision-bot/api/internal/predict"
)

const startText = `Hi! I am the ArtVision bot.
Send me a picture and I will tell you whether it is a photo (binary mode),
which artistic category it belongs to (multiclass), clean it up (denoise)
or describe it (caption).

Log in with /login <email> <password> to keep a history of your predictions.
/help lists every command.`

const helpText = `Predictions
/mode - choose what to do with pictures
/binary /multiclass /denoise /caption - switch mode directly
Send a photo or an image file to run the current mode.

Account
/login <email> <password>
/register <username> <email> <password> (send it as a photo caption to set a profile picture)
/me - who am I
/update username=... email=... password=...
/logout

History
/history [binary|multiclass|denoise|caption] [page]
/recent - last predictions relayed in this chat`

const (
	cbMode    = "mode:"
	cbHistory = "hist:"
)

func kindTitle(k predict.Kind) string {
	switch k {
	case predict.Binary:
		return "binary (photo or not)"
	case predict.Multiclass:
		return "multiclass (artistic category)"
	case predict.Denoising:
		return "denoise"
	case predict.Captioning:
		return "caption"
	}
	return string(k)
}

func makeModeKeyboard(current predict.Kind) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 2)
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	for _, k := range predict.Kinds {
		label := string(k)
		if k == current {
			label = "• " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbMode+string(k)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 2)
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// makeHistoryKindKeyboard offers one button per kind that has records.
func makeHistoryKindKeyboard(groups map[predict.Kind][]history.PredictionRecord) (tgbotapi.InlineKeyboardMarkup, bool) {
	var row []tgbotapi.InlineKeyboardButton
	for _, k := range predict.Kinds {
		if n := len(groups[k]); n > 0 {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%d)", k, n), historyData(k, 1)))
		}
	}
	if len(row) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(row), true
}

func makeHistoryPageKeyboard(k predict.Kind, p history.Page) (tgbotapi.InlineKeyboardMarkup, bool) {
	var row []tgbotapi.InlineKeyboardButton
	if p.HasPrev() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("« prev", historyData(k, p.Page-1)))
	}
	if p.HasNext() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("next »", historyData(k, p.Page+1)))
	}
	if len(row) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(row), true
}

func historyData(k predict.Kind, page int) string {
	return fmt.Sprintf("%s%s:%d", cbHistory, k, page)
}

func formatConfidence(c *float64) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%.1f%%", *c*100)
}

// formatResult renders a classification or caption result.
func formatResult(res predict.Result) string {
	switch res.Kind {
	case predict.Binary:
		return fmt.Sprintf("🔎 Binary: %s\nConfidence: %s", res.Label, formatConfidence(res.Confidence))
	case predict.Multiclass:
		return fmt.Sprintf("🎨 Category: %s\nConfidence: %s", res.Label, formatConfidence(res.Confidence))
	case predict.Captioning:
		return "📝 " + res.Label
	case predict.Denoising:
		return "✨ Denoised image: " + res.ResultAssetURL
	}
	return res.Label
}

func formatHistoryPage(k predict.Kind, p history.Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "History: %s, page %d/%d (%d total)\n", k, p.Page, max(p.TotalPages, 1), p.Total)
	if len(p.Items) == 0 {
		b.WriteString("\nNothing yet.")
		return b.String()
	}
	for _, rec := range p.Items {
		b.WriteString("\n")
		if !rec.CreatedAt.IsZero() {
			b.WriteString(rec.CreatedAt.Format("2006-01-02 15:04"))
			b.WriteString(" · ")
		}
		if rec.Result != "" {
			b.WriteString(rec.Result)
		}
		if c := formatConfidence(rec.Confidence); c != "" && k != predict.Captioning && k != predict.Denoising {
			b.WriteString(" (" + c + ")")
		}
		if rec.Filename != "" {
			b.WriteString("\n  " + rec.Filename)
		}
	}
	return b.String()
}

func formatHistorySummary(groups map[predict.Kind][]history.PredictionRecord) string {
	var b strings.Builder
	b.WriteString("Your predictions:\n")
	total := 0
	for _, k := range predict.Kinds {
		n := len(groups[k])
		total += n
		fmt.Fprintf(&b, "%s: %d\n", k, n)
	}
	if total == 0 {
		return "You have no predictions yet. Send a picture!"
	}
	return b.String()
}

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"artvision-bot/api/internal/account"
	"artvision-bot/api/internal/config"
	"artvision-bot/api/internal/history"
	"artvision-bot/api/internal/httpserver"
	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/session"
	"artvision-bot/api/internal/store"
	"artvision-bot/api/internal/telegram"
	"artvision-bot/api/internal/zlog"
)

func main() {
	cfg := config.Load()
	zlog.Init(zlog.Options{Level: cfg.LogLevel, Path: cfg.LogPath})
	defer zlog.Sync()

	token := config.MustEnv("TELEGRAM_BOT_TOKEN")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Backend clients ---
	httpc := &http.Client{Timeout: cfg.RequestTimeout}
	opts := []predict.Option{predict.WithHTTPClient(httpc)}
	if cfg.LegacyRoutes {
		opts = append(opts, predict.WithRoutes(predict.LegacyRoutes()))
	}

	r := &telegram.Router{
		Predict:   predict.New(cfg.APIBaseURL, opts...),
		Accounts:  account.New(cfg.APIBaseURL, httpc),
		History:   history.New(cfg.APIBaseURL, httpc),
		Sessions:  session.NewStore(),
		MaxPixels: cfg.MaxImagePixels,
		HTTP:      &http.Client{Timeout: 60 * time.Second},
	}

	// --- Postgres audit log (optional) ---
	checks := map[string]httpserver.Check{}
	if dsn := store.ResolveDSN(); dsn != "" {
		db, err := store.Open(ctx, dsn)
		if err != nil {
			zlog.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		zlog.Info("db connected", zap.String("dsn", store.SafeDSNSummary(dsn)))

		audit := store.NewAuditRepo(db)
		if err := audit.EnsureSchema(ctx); err != nil {
			zlog.Fatal("audit schema", zap.Error(err))
		}
		r.Audit = audit
		checks["db"] = db.PingContext
		go runJanitor(ctx, audit, cfg.AuditRetention)
	} else {
		zlog.Info("no database configured, audit log disabled")
	}

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		zlog.Fatal("telegram", zap.Error(err))
	}
	bot.Debug = false
	r.Bot = bot
	zlog.Info("bot started",
		zap.String("username", bot.Self.UserName),
		zap.String("backend", cfg.APIBaseURL),
		zap.Bool("legacy_routes", cfg.LegacyRoutes))

	// ListenForWebhook registers on DefaultServeMux, so /healthz goes there too.
	httpserver.Register(http.DefaultServeMux, checks)
	addr := "0.0.0.0:" + cfg.Port

	if cfg.WebhookURL != "" {
		startWebhookMode(ctx, addr, bot, r, cfg.WebhookURL)
	} else {
		startPollingMode(ctx, addr, bot, r)
	}

	r.Wait()
	zlog.Info("bot stopped")
}

// runJanitor purges audit rows older than retention once an hour.
func runJanitor(ctx context.Context, repo *store.AuditRepo, retention time.Duration) {
	if retention <= 0 {
		return
	}
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		n, err := repo.PurgeOlderThan(ctx, retention)
		if err != nil && !errors.Is(err, context.Canceled) {
			zlog.Warn("audit purge", zap.Error(err))
		} else if n > 0 {
			zlog.Info("audit purge", zap.Int64("deleted", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		zlog.Fatal("webhook", zap.Error(err))
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		zlog.Fatal("set webhook", zap.Error(err))
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			r.HandleUpdate(upd)
		}
		zlog.Info("webhook updates channel closed")
	}()

	zlog.Info("webhook mode", zap.String("addr", addr))
	serve(ctx, addr)
}

func startPollingMode(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	// drop a webhook left over from an earlier deployment
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		zlog.Warn("delete webhook", zap.Error(err))
	}
	go serve(ctx, addr)
	runPolling(ctx, bot, r.HandleUpdate)
}

func serve(ctx context.Context, addr string) {
	errc := make(chan error, 1)
	go func() { errc <- httpserver.StartHTTP(addr, http.DefaultServeMux) }()
	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server", zap.Error(err))
		}
	}
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			zlog.Info("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			zlog.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// FNV-1a, stable per token
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}

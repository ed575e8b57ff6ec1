package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"artvision-bot/api/internal/account"
	"artvision-bot/api/internal/config"
	"artvision-bot/api/internal/history"
	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/session"
	"artvision-bot/api/internal/zlog"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	// keep the terminal clean unless a log file is configured
	if cfg.LogPath != "" {
		zlog.Init(zlog.Options{Level: cfg.LogLevel, Path: cfg.LogPath})
		defer zlog.Sync()
	}

	httpc := &http.Client{Timeout: cfg.RequestTimeout}
	opts := []predict.Option{predict.WithHTTPClient(httpc)}
	if cfg.LegacyRoutes {
		opts = append(opts, predict.WithRoutes(predict.LegacyRoutes()))
	}

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()

	c := &console{
		predict:   predict.New(cfg.APIBaseURL, opts...),
		accounts:  account.New(cfg.APIBaseURL, httpc),
		history:   history.New(cfg.APIBaseURL, httpc),
		sessions:  session.NewStore(),
		maxPixels: cfg.MaxImagePixels,
		out:       rl.Stdout(),
		readPassword: func(prompt string) (string, error) {
			b, err := rl.ReadPassword(prompt)
			return string(b), err
		},
	}
	zlog.Info("console started", zap.String("backend", cfg.APIBaseURL))
	fmt.Fprintf(rl.Stdout(), "ArtVision console, backend %s. Type help.\n", cfg.APIBaseURL)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		quit := c.exec(ctx, line)
		cancel()
		if quit {
			break
		}
	}
	return nil
}

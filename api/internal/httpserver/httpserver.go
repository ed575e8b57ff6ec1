package httpserver

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"artvision-bot/api/internal/zlog"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Healthz answers 200 "ok" when every check passes and 503 with the failing
// names otherwise.
func Healthz(checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var failed []string
		for _, n := range names {
			if err := checks[n](ctx); err != nil {
				failed = append(failed, n+": not ok\n"+err.Error())
			}
		}
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(failed, "\n")))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Register installs /healthz and a plain root page on mux.
func Register(mux *http.ServeMux, checks map[string]Check) {
	mux.HandleFunc("/healthz", Healthz(checks))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("artvision telegram bot"))
	})
}

// StartHTTP serves mux on addr until the server fails.
func StartHTTP(addr string, mux http.Handler) error {
	zlog.Info("http listening", zap.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

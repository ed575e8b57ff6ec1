package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"artvision-bot/api/internal/account"
	"artvision-bot/api/internal/apierr"
	"artvision-bot/api/internal/history"
	"artvision-bot/api/internal/imaging"
	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/session"
)

// localChat keys the single console session in the store.
const localChat = 0

const usage = `commands:
  login <email> [password]
  register <username> <email> <password> [photo-path]
  logout
  whoami
  predict <binary|multiclass|denoise|caption> <image-path>
  history [kind] [page]
  help
  quit`

type console struct {
	predict   *predict.Client
	accounts  *account.Client
	history   *history.Client
	sessions  *session.Store
	maxPixels int
	out       io.Writer

	// readPassword asks for a password without echo.
	readPassword func(prompt string) (string, error)
}

// exec runs one command line and reports whether the REPL should stop.
func (c *console) exec(ctx context.Context, line string) bool {
	f := strings.Fields(line)
	if len(f) == 0 {
		return false
	}
	var err error
	switch strings.ToLower(f[0]) {
	case "quit", "exit":
		return true
	case "help", "?":
		c.println(usage)
	case "login":
		err = c.login(ctx, f[1:])
	case "register":
		err = c.register(ctx, f[1:])
	case "logout":
		c.sessions.Delete(localChat)
		c.println("logged out")
	case "whoami":
		c.whoami()
	case "predict":
		err = c.predictFile(ctx, f[1:])
	case "history":
		err = c.showHistory(ctx, f[1:])
	default:
		c.printf("unknown command %q, try help\n", f[0])
	}
	if err != nil {
		c.printf("error: %s\n", errorText(err))
	}
	return false
}

func errorText(err error) string {
	if apierr.Kind(err) == "client" {
		return err.Error()
	}
	return apierr.Message(err)
}

func (c *console) login(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: login <email> [password]")
	}
	pw := ""
	if len(args) == 2 {
		pw = args[1]
	} else {
		var err error
		if pw, err = c.readPassword("password: "); err != nil {
			return err
		}
	}
	res, err := c.accounts.Login(ctx, args[0], pw)
	if err != nil {
		return err
	}
	c.sessions.Set(localChat, session.FromLogin(res))
	c.printf("welcome %s (user %d)\n", res.User.Username, res.User.ID)
	return nil
}

func (c *console) register(ctx context.Context, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return errors.New("usage: register <username> <email> <password> [photo-path]")
	}
	reg := account.Registration{Username: args[0], Email: args[1], Password: args[2]}
	if len(args) == 4 {
		b, err := os.ReadFile(args[3])
		if err != nil {
			return err
		}
		reg.Photo, reg.PhotoName = b, filepath.Base(args[3])
	}
	u, err := c.accounts.Register(ctx, reg)
	if err != nil {
		return err
	}
	c.printf("account %s created (user %d), now login %s\n", u.Username, u.ID, u.Email)
	return nil
}

func (c *console) whoami() {
	sess, ok := c.sessions.Get(localChat)
	if !ok {
		c.println("anonymous")
		return
	}
	c.printf("%s <%s> (user %d)", sess.User.Username, sess.User.Email, sess.User.ID)
	if !sess.ExpiresAt.IsZero() {
		c.printf(", session until %s", sess.ExpiresAt.Local().Format(time.DateTime))
	}
	c.println("")
}

func (c *console) predictFile(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: predict <kind> <image-path>")
	}
	kind, err := predict.ParseKind(args[0])
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	img, mime, err := imaging.Fit(raw, c.maxPixels)
	if err != nil {
		return err
	}
	name := filepath.Base(args[1])
	if orig, _ := imaging.Sniff(raw); orig != mime {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + imaging.Extension(mime)
	}

	client := c.predict.WithSessionProvider(c.sessions.Provider(localChat))
	res, err := client.Submit(ctx, predict.Request{Kind: kind, Image: img, Filename: name})
	if err != nil {
		return err
	}
	switch {
	case kind == predict.Denoising:
		c.printf("denoised image: %s\n", res.ResultAssetURL)
	case res.Confidence != nil:
		c.printf("%s: %s (%.1f%%)\n", kind, res.Label, *res.Confidence*100)
	default:
		c.printf("%s: %s\n", kind, res.Label)
	}
	return nil
}

func (c *console) showHistory(ctx context.Context, args []string) error {
	sess, ok := c.sessions.Get(localChat)
	if !ok {
		return errors.New("login first")
	}
	recs, err := c.history.List(ctx, sess.User.ID)
	if err != nil {
		return err
	}
	groups := history.GroupByKind(recs)
	if len(args) == 0 {
		for _, k := range predict.Kinds {
			c.printf("%-11s %d\n", k, len(groups[k]))
		}
		return nil
	}

	kind, err := predict.ParseKind(args[0])
	if err != nil {
		return err
	}
	page := 1
	if len(args) > 1 {
		if page, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("bad page %q", args[1])
		}
	}
	p := history.Paginate(groups[kind], page, history.DefaultPerPage)
	c.printf("%s page %d/%d (%d total)\n", kind, p.Page, max(p.TotalPages, 1), p.Total)
	for _, r := range p.Items {
		ts := "-"
		if !r.CreatedAt.IsZero() {
			ts = r.CreatedAt.Local().Format(time.DateTime)
		}
		line := fmt.Sprintf("  #%d %s %s", r.ID, ts, r.Result)
		if r.Confidence != nil && kind.Classification() {
			line += fmt.Sprintf(" (%.1f%%)", *r.Confidence*100)
		}
		c.println(line + " " + r.Filename)
	}
	return nil
}

func (c *console) printf(format string, a ...any) { _, _ = fmt.Fprintf(c.out, format, a...) }
func (c *console) println(s string)               { _, _ = fmt.Fprintln(c.out, s) }

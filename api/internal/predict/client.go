// Package predict is the typed client for the backend prediction endpoints.
//
// A Client turns one Request into exactly one multipart POST, picks the route
// for the operation kind and normalizes the answer into a Result. It holds no
// per-call state and is safe for concurrent use.
package predict

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"artvision-bot/api/internal/apierr"
	"artvision-bot/api/internal/imaging"
	"artvision-bot/api/internal/util"
	"artvision-bot/api/internal/zlog"
)

type Client struct {
	baseURL string
	routes  Routes
	httpc   *http.Client
	session SessionProvider
}

type Option func(*Client)

// WithHTTPClient replaces the default client (60s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTimeout sets the per-request timeout of the default client; 0 disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc = &http.Client{Timeout: d} }
}

func WithRoutes(r Routes) Option {
	return func(c *Client) { c.routes = r }
}

func WithSession(p SessionProvider) Option {
	return func(c *Client) { c.session = p }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		routes:  CanonicalRoutes(),
		httpc:   &http.Client{Timeout: 60 * time.Second},
		session: Anonymous{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithSessionProvider returns a shallow copy bound to p, sharing the
// underlying http.Client. Front-ends use it per chat.
func (c *Client) WithSessionProvider(p SessionProvider) *Client {
	cp := *c
	cp.session = p
	return &cp
}

func (c *Client) Binary(ctx context.Context, image []byte) (Result, error) {
	return c.Submit(ctx, Request{Kind: Binary, Image: image})
}

func (c *Client) Multiclass(ctx context.Context, image []byte) (Result, error) {
	return c.Submit(ctx, Request{Kind: Multiclass, Image: image})
}

func (c *Client) Denoise(ctx context.Context, image []byte) (Result, error) {
	return c.Submit(ctx, Request{Kind: Denoising, Image: image})
}

func (c *Client) Caption(ctx context.Context, image []byte) (Result, error) {
	return c.Submit(ctx, Request{Kind: Captioning, Image: image})
}

// Submit sends req to the backend once. Input problems are reported before
// any network traffic; everything else comes back as an apierr type.
func (c *Client) Submit(ctx context.Context, req Request) (Result, error) {
	route, ok := c.routes.lookup(req.Kind)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if len(req.Image) == 0 {
		return Result{}, ErrEmptyImage
	}
	mime, ok := imaging.Sniff(req.Image)
	if !ok {
		return Result{}, ErrUnsupportedImage
	}

	userID, token, known := c.session.Identity()
	if req.UserID != nil {
		userID, known = *req.UserID, true
	}

	filename := req.Filename
	if filename == "" {
		filename = "upload" + imaging.Extension(mime)
	}
	body, contentType, err := buildForm(route.Tag, filename, mime, req.Image, userID, known)
	if err != nil {
		return Result{}, fmt.Errorf("build form: %w", err)
	}

	op := "predict " + string(req.Kind)
	url := c.baseURL + route.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	reqID := uuid.NewString()
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", reqID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		zlog.Warn("prediction request failed",
			zap.String("request_id", reqID),
			zap.String("kind", string(req.Kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Result{}, apierr.Network(op, url, err)
	}
	defer resp.Body.Close()

	zlog.Debug("prediction response",
		zap.String("request_id", reqID),
		zap.String("kind", string(req.Kind)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if err := apierr.Check(op, resp); err != nil {
		return Result{}, err
	}
	raw, err := apierr.ReadBody(op, url, resp)
	if err != nil {
		return Result{}, err
	}
	return Normalize(op, req.Kind, raw)
}

func buildForm(tag, filename, mime string, image []byte, userID int64, withUser bool) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if withUser {
		if err := mw.WriteField("id_user", strconv.FormatInt(userID, 10)); err != nil {
			return nil, "", err
		}
	}
	if tag != "" {
		if err := mw.WriteField("prediction_type", tag); err != nil {
			return nil, "", err
		}
	}

	if err := util.WriteFilePart(mw, "file", filename, mime, image); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

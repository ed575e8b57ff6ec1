package predict

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"artvision-bot/api/internal/apierr"
)

var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR fake image body")

type captured struct {
	Method   string
	Path     string
	Type     string
	UserID   string
	HasUser  bool
	Filename string
	FileMIME string
	File     string
	Auth     string
	ReqID    string
}

// backend records every request and answers with status/body.
type backend struct {
	mu     sync.Mutex
	reqs   []captured
	status int
	body   string
}

func (b *backend) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		c := captured{
			Method: r.Method,
			Path:   r.URL.Path,
			Type:   r.FormValue("prediction_type"),
			UserID: r.FormValue("id_user"),
			Auth:   r.Header.Get("Authorization"),
			ReqID:  r.Header.Get("X-Request-ID"),
		}
		_, c.HasUser = r.MultipartForm.Value["id_user"]
		if f, fh, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			c.File = string(data)
			c.Filename = fh.Filename
			c.FileMIME = fh.Header.Get("Content-Type")
			f.Close()
		}
		b.mu.Lock()
		b.reqs = append(b.reqs, c)
		status, body := b.status, b.body
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func newBackend(t *testing.T, status int, body string) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{status: status, body: body}
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)
	return b, srv
}

type fakeSession struct {
	id    int64
	token string
}

func (s fakeSession) Identity() (int64, string, bool) { return s.id, s.token, true }

func TestSubmitSelectsRoutePerKind(t *testing.T) {
	want := map[Kind]string{
		Binary:     "binaire",
		Multiclass: "multiclass",
		Denoising:  "denoising",
		Captioning: "captioning",
	}
	for kind, tag := range want {
		t.Run(string(kind), func(t *testing.T) {
			b, srv := newBackend(t, http.StatusOK,
				`{"result": "x", "confidence": 0.5, "filename": "https://cdn.example.com/out.png"}`)
			c := New(srv.URL, WithHTTPClient(srv.Client()))

			if _, err := c.Submit(context.Background(), Request{Kind: kind, Image: testPNG, UserID: Int64(7)}); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if len(b.reqs) != 1 {
				t.Fatalf("requests = %d, want 1", len(b.reqs))
			}
			got := b.reqs[0]
			if got.Method != http.MethodPost || got.Path != "/predictions/" {
				t.Errorf("%s %s", got.Method, got.Path)
			}
			if got.Type != tag {
				t.Errorf("prediction_type = %q, want %q", got.Type, tag)
			}
			if got.UserID != "7" {
				t.Errorf("id_user = %q", got.UserID)
			}
			if got.File != string(testPNG) || got.Filename != "upload.png" || got.FileMIME != "image/png" {
				t.Errorf("file part = %q %q %q", got.Filename, got.FileMIME, got.File)
			}
			if got.ReqID == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestSubmitLegacyRoutes(t *testing.T) {
	want := map[Kind]struct{ path, tag string }{
		Binary:     {"/predict_binary", ""},
		Multiclass: {"/predict_multiclass", ""},
		Denoising:  {"/predictDenoising", "denoising"},
		Captioning: {"/caption", ""},
	}
	for kind, w := range want {
		b, srv := newBackend(t, http.StatusOK,
			`{"prediction": "Sketch", "confidence": 0.7, "filename": "https://cdn.example.com/d.png"}`)
		c := New(srv.URL, WithHTTPClient(srv.Client()), WithRoutes(LegacyRoutes()))
		res, err := c.Submit(context.Background(), Request{Kind: kind, Image: testPNG})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if b.reqs[0].Path != w.path || b.reqs[0].Type != w.tag {
			t.Errorf("%s: got %s tag=%q", kind, b.reqs[0].Path, b.reqs[0].Type)
		}
		if kind != Denoising && res.Label != "Sketch" {
			t.Errorf("%s: legacy prediction field not mapped: %+v", kind, res)
		}
	}
}

func TestSubmitNormalizesSuccess(t *testing.T) {
	_, srv := newBackend(t, http.StatusOK, `{"result": "Photo", "confidence": 0.92}`)
	c := New(srv.URL, WithHTTPClient(srv.Client()))

	got, err := c.Binary(context.Background(), testPNG)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	want := Result{Kind: Binary, Label: "Photo", Confidence: func() *float64 { v := 0.92; return &v }()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitDenoiseAndCaption(t *testing.T) {
	_, srv := newBackend(t, http.StatusOK,
		`{"result": "denoised", "confidence": null, "filename": "https://res.cloudinary.com/x/denoised.png"}`)
	c := New(srv.URL, WithHTTPClient(srv.Client()))

	got, err := c.Denoise(context.Background(), testPNG)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	want := Result{Kind: Denoising, Label: "denoised", ResultAssetURL: "https://res.cloudinary.com/x/denoised.png"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("denoise (-want +got):\n%s", diff)
	}

	_, srv2 := newBackend(t, http.StatusOK, `{"result": "a cat sitting on a chair", "confidence": 0.3}`)
	c2 := New(srv2.URL, WithHTTPClient(srv2.Client()))
	got, err = c2.Caption(context.Background(), testPNG)
	if err != nil {
		t.Fatalf("Caption: %v", err)
	}
	if got.Label != "a cat sitting on a chair" || got.Confidence != nil {
		t.Errorf("caption = %+v, confidence must be ignored", got)
	}
}

func TestSubmitServerError(t *testing.T) {
	_, srv := newBackend(t, http.StatusInternalServerError, `{"detail": "model unavailable"}`)
	c := New(srv.URL, WithHTTPClient(srv.Client()))

	_, err := c.Multiclass(context.Background(), testPNG)
	var se *apierr.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("want *apierr.ServerError, got %T: %v", err, err)
	}
	if se.Status != http.StatusInternalServerError || se.Message != "model unavailable" {
		t.Errorf("got %+v", se)
	}
}

func TestSubmitMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		body string
	}{
		{"missing result", Binary, `{"confidence": 0.9}`},
		{"not json", Binary, `<html>oops</html>`},
		{"null body", Captioning, `null`},
		{"missing confidence", Multiclass, `{"result": "Painting"}`},
		{"confidence out of range", Binary, `{"result": "Photo", "confidence": 92}`},
		{"denoise without url", Denoising, `{"result": "ok"}`},
		{"empty caption", Captioning, `{"result": "   "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, srv := newBackend(t, http.StatusOK, tc.body)
			c := New(srv.URL, WithHTTPClient(srv.Client()))
			_, err := c.Submit(context.Background(), Request{Kind: tc.kind, Image: testPNG})
			var me *apierr.MalformedResponse
			if !errors.As(err, &me) {
				t.Fatalf("want *apierr.MalformedResponse, got %T: %v", err, err)
			}
		})
	}
}

type countingTransport struct {
	calls atomic.Int32
	err   error
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, c.err
}

func TestSubmitNetworkErrorNoRetry(t *testing.T) {
	rt := &countingTransport{err: errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")}
	c := New("http://127.0.0.1:8000", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := c.Binary(context.Background(), testPNG)
	var ne *apierr.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("want *apierr.NetworkError, got %T: %v", err, err)
	}
	if n := rt.calls.Load(); n != 1 {
		t.Errorf("transport calls = %d, want 1", n)
	}
}

func TestSubmitRespectsCancellation(t *testing.T) {
	_, srv := newBackend(t, http.StatusOK, `{"result": "Photo", "confidence": 0.9}`)
	c := New(srv.URL, WithHTTPClient(srv.Client()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Binary(ctx, testPNG)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	var ne *apierr.NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("cancellation should surface as NetworkError, got %T", err)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	_, srv := newBackend(t, http.StatusOK, `{"result": "Drawing", "confidence": 0.61}`)
	c := New(srv.URL, WithHTTPClient(srv.Client()), WithSession(fakeSession{id: 3}))

	req := Request{Kind: Multiclass, Image: testPNG}
	first, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
}

func TestSubmitUsesSessionProvider(t *testing.T) {
	b, srv := newBackend(t, http.StatusOK, `{"result": "Photo", "confidence": 0.9}`)
	c := New(srv.URL, WithHTTPClient(srv.Client()))

	if _, err := c.Binary(context.Background(), testPNG); err != nil {
		t.Fatal(err)
	}
	if b.reqs[0].HasUser || b.reqs[0].Auth != "" {
		t.Errorf("anonymous request carried identity: %+v", b.reqs[0])
	}

	bound := c.WithSessionProvider(fakeSession{id: 42, token: "tok"})
	if _, err := bound.Binary(context.Background(), testPNG); err != nil {
		t.Fatal(err)
	}
	if b.reqs[1].UserID != "42" || b.reqs[1].Auth != "Bearer tok" {
		t.Errorf("session identity not sent: %+v", b.reqs[1])
	}

	if _, err := bound.Submit(context.Background(), Request{Kind: Binary, Image: testPNG, UserID: Int64(9)}); err != nil {
		t.Fatal(err)
	}
	if b.reqs[2].UserID != "9" {
		t.Errorf("explicit user id must win, got %q", b.reqs[2].UserID)
	}
}

func TestSubmitRejectsBadInputWithoutRequest(t *testing.T) {
	rt := &countingTransport{err: errors.New("unreachable")}
	c := New("http://backend", WithHTTPClient(&http.Client{Transport: rt}))

	if _, err := c.Submit(context.Background(), Request{Kind: Binary}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty image: %v", err)
	}
	if _, err := c.Submit(context.Background(), Request{Kind: Binary, Image: []byte("%PDF-1.4")}); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("pdf: %v", err)
	}
	if _, err := c.Submit(context.Background(), Request{Kind: "sepia", Image: testPNG}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind: %v", err)
	}
	if n := rt.calls.Load(); n != 0 {
		t.Errorf("transport calls = %d, want 0", n)
	}
}

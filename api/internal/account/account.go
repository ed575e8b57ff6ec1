// Package account talks to the backend user endpoints: login, registration
// and profile update.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
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

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrMissingEmail       = errors.New("email is required")
	ErrNothingToUpdate    = errors.New("nothing to update")
)

type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhotoProfil string `json:"photo_profil,omitempty"`
}

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

type Registration struct {
	Username  string
	Email     string
	Password  string
	Photo     []byte // optional profile photo
	PhotoName string
}

// ProfileUpdate is sent as JSON; an empty Password keeps the current one.
type ProfileUpdate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpc: httpc}
}

// Login exchanges credentials for an access token (OAuth2 password form).
// The backend accepts the email in the username field.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return LoginResult{}, ErrMissingCredentials
	}
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", strings.TrimSpace(username))
	form.Set("password", password)

	var out LoginResult
	err := c.do(ctx, "login", http.MethodPost, "/login", "", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), &out)
	if err != nil {
		return LoginResult{}, err
	}
	if out.AccessToken == "" {
		return LoginResult{}, apierr.Malformed("login", "missing access_token", nil, nil)
	}
	if out.TokenType == "" {
		out.TokenType = "bearer"
	}
	return out, nil
}

// Register creates an account. The photo, when given, goes in photo_profil.
func (c *Client) Register(ctx context.Context, r Registration) (User, error) {
	if strings.TrimSpace(r.Username) == "" || r.Password == "" {
		return User{}, ErrMissingCredentials
	}
	if strings.TrimSpace(r.Email) == "" {
		return User{}, ErrMissingEmail
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range [][2]string{
		{"username", strings.TrimSpace(r.Username)},
		{"email", strings.TrimSpace(r.Email)},
		{"password", r.Password},
	} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return User{}, fmt.Errorf("build form: %w", err)
		}
	}
	if len(r.Photo) > 0 {
		mime, ok := imaging.Sniff(r.Photo)
		if !ok {
			return User{}, imaging.ErrUnsupported
		}
		name := r.PhotoName
		if name == "" {
			name = "profile" + imaging.Extension(mime)
		}
		if err := util.WriteFilePart(mw, "photo_profil", name, mime, r.Photo); err != nil {
			return User{}, fmt.Errorf("build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return User{}, fmt.Errorf("build form: %w", err)
	}

	var u User
	if err := c.do(ctx, "register", http.MethodPost, "/users/", "", mw.FormDataContentType(), &buf, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// UpdateProfile replaces username and email, and the password when set.
func (c *Client) UpdateProfile(ctx context.Context, token string, userID int64, p ProfileUpdate) (User, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)
	if p.Username == "" && p.Email == "" && p.Password == "" {
		return User{}, ErrNothingToUpdate
	}
	body, err := json.Marshal(p)
	if err != nil {
		return User{}, fmt.Errorf("marshal profile: %w", err)
	}

	var u User
	path := "/users/" + strconv.FormatInt(userID, 10)
	if err := c.do(ctx, "update profile", http.MethodPut, path, token, "application/json", bytes.NewReader(body), &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token, contentType string, body io.Reader, out any) error {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		zlog.Warn("account request failed", zap.String("op", op), zap.String("request_id", reqID), zap.Error(err))
		return apierr.Network(op, u, err)
	}
	defer resp.Body.Close()

	if err := apierr.Check(op, resp); err != nil {
		return err
	}
	raw, err := apierr.ReadBody(op, u, resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Malformed(op, "body is not valid JSON", raw, err)
	}
	return nil
}

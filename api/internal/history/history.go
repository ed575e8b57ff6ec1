// Package history reads a user's past predictions from the backend and
// slices them for display.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"artvision-bot/api/internal/apierr"
	"artvision-bot/api/internal/predict"
	"artvision-bot/api/internal/zlog"
)

// DefaultPerPage matches the page size of the web profile page.
const DefaultPerPage = 6

type PredictionRecord struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"` // image URL
	Result         string    `json:"result"`
	Confidence     *float64  `json:"confidence"`
	PredictionType string    `json:"prediction_type"` // wire tag
	CreatedAt      time.Time `json:"-"`
}

// naive timestamps come from the backend without a zone and are UTC.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (r *PredictionRecord) UnmarshalJSON(b []byte) error {
	type plain PredictionRecord
	var aux struct {
		plain
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = PredictionRecord(aux.plain)
	if aux.CreatedAt == "" {
		return nil
	}
	t, err := parseCreatedAt(aux.CreatedAt)
	if err != nil {
		return err
	}
	r.CreatedAt = t
	return nil
}

func parseCreatedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range createdAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("created_at %q: unknown time format", s)
}

// Kind maps the record's prediction_type to a predict.Kind.
func (r PredictionRecord) Kind() (predict.Kind, bool) {
	return predict.KindFromTag(r.PredictionType)
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

// List returns every prediction stored for userID, in backend order.
func (c *Client) List(ctx context.Context, userID int64) ([]PredictionRecord, error) {
	const op = "list predictions"
	u := c.baseURL + "/predictions/user/" + strconv.FormatInt(userID, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		zlog.Warn("history request failed", zap.String("request_id", reqID), zap.Int64("user_id", userID), zap.Error(err))
		return nil, apierr.Network(op, u, err)
	}
	defer resp.Body.Close()

	if err := apierr.Check(op, resp); err != nil {
		return nil, err
	}
	raw, err := apierr.ReadBody(op, u, resp)
	if err != nil {
		return nil, err
	}
	var out []PredictionRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apierr.Malformed(op, "body is not a list of predictions", raw, err)
	}
	if out == nil {
		out = []PredictionRecord{}
	}
	return out, nil
}

// GroupByKind splits records per kind, keeping their order. Records with an
// unknown prediction_type are dropped.
func GroupByKind(records []PredictionRecord) map[predict.Kind][]PredictionRecord {
	out := make(map[predict.Kind][]PredictionRecord, len(predict.Kinds))
	for _, r := range records {
		k, ok := r.Kind()
		if !ok {
			continue
		}
		out[k] = append(out[k], r)
	}
	return out
}

type Page struct {
	Items      []PredictionRecord
	Page       int // 1-based
	TotalPages int
	Total      int
}

func (p Page) HasPrev() bool { return p.Page > 1 }
func (p Page) HasNext() bool { return p.Page < p.TotalPages }

// Paginate returns page (1-based) of records. perPage <= 0 means
// DefaultPerPage; a page outside [1, TotalPages] is clamped.
func Paginate(records []PredictionRecord, page, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := len(records)
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		return Page{Items: []PredictionRecord{}, Page: 1, TotalPages: 0, Total: 0}
	}
	page = max(1, min(page, pages))

	start := (page - 1) * perPage
	end := min(start+perPage, total)
	return Page{Items: records[start:end], Page: page, TotalPages: pages, Total: total}
}

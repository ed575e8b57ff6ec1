package history

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"artvision-bot/api/internal/apierr"
	"artvision-bot/api/internal/predict"
)

const listBody = `[
  {"id": 1, "filename": "https://cdn/1.jpg", "result": "Photo", "confidence": 0.9, "prediction_type": "binaire", "created_at": "2025-03-01T10:20:30.123456"},
  {"id": 2, "filename": "https://cdn/2.jpg", "result": "Painting", "confidence": 0.7, "prediction_type": "multiclass", "created_at": "2025-03-02T08:00:00Z"},
  {"id": 3, "filename": "https://cdn/3.png", "result": "denoised", "confidence": null, "prediction_type": "denoising", "created_at": "2025-03-03T09:00:00+02:00"},
  {"id": 4, "filename": "https://cdn/4.jpg", "result": "a dog", "confidence": null, "prediction_type": "captioning", "created_at": ""},
  {"id": 5, "filename": "https://cdn/5.jpg", "result": "?", "confidence": null, "prediction_type": "sepia", "created_at": "2025-03-04T00:00:00"}
]`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/predictions/user/42" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListParsesRecords(t *testing.T) {
	srv := serve(t, http.StatusOK, listBody)
	got, err := New(srv.URL, srv.Client()).List(context.Background(), 42)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d", len(got))
	}
	if want := time.Date(2025, 3, 1, 10, 20, 30, 123456000, time.UTC); !got[0].CreatedAt.Equal(want) {
		t.Errorf("naive created_at = %v, want %v", got[0].CreatedAt, want)
	}
	if want := time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC); !got[2].CreatedAt.Equal(want) {
		t.Errorf("zoned created_at = %v, want %v", got[2].CreatedAt, want)
	}
	if !got[3].CreatedAt.IsZero() {
		t.Errorf("empty created_at = %v", got[3].CreatedAt)
	}
	if got[2].Confidence != nil || got[0].Confidence == nil || *got[0].Confidence != 0.9 {
		t.Errorf("confidence not mapped: %+v %+v", got[0], got[2])
	}
}

func TestListNullIsEmpty(t *testing.T) {
	srv := serve(t, http.StatusOK, `null`)
	got, err := New(srv.URL, srv.Client()).List(context.Background(), 42)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestListErrors(t *testing.T) {
	srv := serve(t, http.StatusNotFound, `{"detail": "User not found"}`)
	_, err := New(srv.URL, srv.Client()).List(context.Background(), 42)
	var se *apierr.ServerError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound || se.Message != "User not found" {
		t.Errorf("got %v", err)
	}

	srv = serve(t, http.StatusOK, `{"items": []}`)
	_, err = New(srv.URL, srv.Client()).List(context.Background(), 42)
	var me *apierr.MalformedResponse
	if !errors.As(err, &me) {
		t.Errorf("object body: %v", err)
	}
}

func TestGroupByKind(t *testing.T) {
	recs := []PredictionRecord{
		{ID: 1, PredictionType: "binaire"},
		{ID: 2, PredictionType: "multiclass"},
		{ID: 3, PredictionType: "binaire"},
		{ID: 4, PredictionType: "sepia"},
		{ID: 5, PredictionType: "captioning"},
	}
	got := GroupByKind(recs)
	ids := map[predict.Kind][]int64{}
	for k, rs := range got {
		for _, r := range rs {
			ids[k] = append(ids[k], r.ID)
		}
	}
	want := map[predict.Kind][]int64{
		predict.Binary:     {1, 3},
		predict.Multiclass: {2},
		predict.Captioning: {5},
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPaginate(t *testing.T) {
	recs := make([]PredictionRecord, 14)
	for i := range recs {
		recs[i].ID = int64(i + 1)
	}
	ids := func(p Page) []int64 {
		out := []int64{}
		for _, r := range p.Items {
			out = append(out, r.ID)
		}
		return out
	}

	cases := []struct {
		page, perPage int
		wantPage      int
		wantIDs       []int64
	}{
		{1, 0, 1, []int64{1, 2, 3, 4, 5, 6}},
		{2, 0, 2, []int64{7, 8, 9, 10, 11, 12}},
		{3, 0, 3, []int64{13, 14}},
		{9, 0, 3, []int64{13, 14}},
		{0, 0, 1, []int64{1, 2, 3, 4, 5, 6}},
		{2, 10, 2, []int64{11, 12, 13, 14}},
	}
	for _, tc := range cases {
		p := Paginate(recs, tc.page, tc.perPage)
		if p.Page != tc.wantPage || p.Total != 14 {
			t.Errorf("Paginate(%d, %d) page=%d total=%d", tc.page, tc.perPage, p.Page, p.Total)
		}
		if diff := cmp.Diff(tc.wantIDs, ids(p)); diff != "" {
			t.Errorf("Paginate(%d, %d) items (-want +got):\n%s", tc.page, tc.perPage, diff)
		}
	}

	p := Paginate(recs, 1, 0)
	if p.TotalPages != 3 || p.HasPrev() || !p.HasNext() {
		t.Errorf("first page nav = %+v", p)
	}
	empty := Paginate(nil, 4, 0)
	if empty.Page != 1 || empty.TotalPages != 0 || len(empty.Items) != 0 || empty.HasNext() {
		t.Errorf("empty = %+v", empty)
	}
}

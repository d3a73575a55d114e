package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"domainatlas/internal/model"
	"domainatlas/internal/service"
	"domainatlas/internal/storage"
	"domainatlas/internal/utils"
)

func init() {
	utils.TestInitLogger()
}

func newTestHandler(t *testing.T) (*Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	store := &storage.Storage{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	bus := service.NewProgressBus()
	pipe := &service.Pipeline{Store: store, Bus: bus, Concurrency: 1}
	return NewHandler(store, pipe, bus, "127.0.0.1,::1", utils.ProxyConfig{}), mr
}

func seedResults(t *testing.T, h *Handler) {
	t.Helper()
	records := []model.Record{{
		Organization: model.Organization{
			NameIcelandic: "Veðurstofa Íslands",
			NameEnglish:   "Icelandic Met Office",
			URL:           "https://vedur.is",
			Domain:        "vedur.is",
		},
		EffectiveEmailProvider: "Microsoft 365",
	}}
	if err := h.Storage.SaveResults(context.Background(), records); err != nil {
		t.Fatal(err)
	}
}

func TestHealthz(t *testing.T) {
	h, mr := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	if err := h.Healthz(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Healthz failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	mr.Close()
	rec = httptest.NewRecorder()
	if err := h.Healthz(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Healthz failed: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with storage down, got %d", rec.Code)
	}
}

func TestResults(t *testing.T) {
	h, _ := newTestHandler(t)
	seedResults(t, h)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/results", nil)
	rec := httptest.NewRecorder()
	if err := h.Results(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		UpdatedAt string         `json:"updated_at"`
		Count     int            `json:"count"`
		Results   []model.Record `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Count != 1 || len(body.Results) != 1 {
		t.Errorf("Expected one record, got count=%d len=%d", body.Count, len(body.Results))
	}
	if body.UpdatedAt == "" {
		t.Error("Expected an update stamp after SaveResults")
	}
	if body.Results[0].Domain != "vedur.is" {
		t.Errorf("Unexpected record: %+v", body.Results[0])
	}
}

func TestResultsCSV(t *testing.T) {
	h, _ := newTestHandler(t)
	seedResults(t, h)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/results.csv", nil)
	rec := httptest.NewRecorder()
	if err := h.ResultsCSV(e.NewContext(req, rec)); err != nil {
		t.Fatalf("ResultsCSV failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "name_icelandic,") {
		t.Errorf("Expected CSV header row, got %q", firstLine(body))
	}
	if !strings.Contains(body, "vedur.is") {
		t.Error("Expected seeded record in CSV output")
	}
}

func TestSummary(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	rec := httptest.NewRecorder()
	err := h.Summary(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 before any run, got %v", err)
	}

	summary := model.RunSummary{
		Organizations: 3,
		Domains:       2,
		Email:         map[string]int{"Microsoft 365": 2, "Unknown": 1},
		DNS:           map[string]int{"Local (.is)": 3},
		Hosting:       map[string]int{"AWS": 3},
		Disclaimers:   map[string]int{"email": 1},
	}
	if err := h.Storage.SaveSummary(context.Background(), summary); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	if err := h.Summary(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Microsoft 365") {
		t.Errorf("Expected category counts in summary, got %s", rec.Body.String())
	}
}

func TestHistory(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	newCtx := func(domain string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/history/:domain")
		c.SetParamNames("domain")
		c.SetParamValues(domain)
		return c, rec
	}

	c, _ := newCtx("not a domain")
	err := h.History(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for invalid domain, got %v", err)
	}

	c, rec := newCtx("vedur.is")
	if err := h.History(c); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"entries":[]`) {
		t.Errorf("Expected empty history, got %s", rec.Body.String())
	}

	if err := h.Storage.AddHistory(context.Background(), "vedur.is", map[string]string{"email_provider": "Microsoft 365"}); err != nil {
		t.Fatal(err)
	}
	c, rec = newCtx("vedur.is")
	if err := h.History(c); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Microsoft 365") {
		t.Errorf("Expected stored entry, got %s", rec.Body.String())
	}
}

func TestTriggerRun(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	t.Run("untrusted address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		req.RemoteAddr = "203.0.113.9:1000"
		rec := httptest.NewRecorder()
		err := h.TriggerRun(e.NewContext(req, rec))
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusForbidden {
			t.Fatalf("Expected 403, got %v", err)
		}
	})

	t.Run("trusted address", func(t *testing.T) {
		f := url.Values{}
		f.Add("classify_only", "true")
		req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(f.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.RemoteAddr = "127.0.0.1:1000"
		rec := httptest.NewRecorder()
		if err := h.TriggerRun(e.NewContext(req, rec)); err != nil {
			t.Fatalf("TriggerRun failed: %v", err)
		}
		if rec.Code != http.StatusAccepted {
			t.Errorf("Expected 202, got %d", rec.Code)
		}
	})

	t.Run("json options", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"classify_only":true}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.RemoteAddr = "127.0.0.1:1000"
		rec := httptest.NewRecorder()
		if err := h.TriggerRun(e.NewContext(req, rec)); err != nil {
			// The previous trigger may still hold the run lock.
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusConflict {
				t.Fatalf("Expected 202 or 409, got %v", err)
			}
			return
		}
		if rec.Code != http.StatusAccepted {
			t.Errorf("Expected 202, got %d", rec.Code)
		}
	})
}

func TestParseFlag(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]bool{
		"true": true,
		"TRUE": true,
		"1":    true,
		"on":   true,
		"":     false,
		"no":   false,
		"0":    false,
	} {
		if got := parseFlag(input); got != want {
			t.Errorf("parseFlag(%q) = %v, want %v", input, got, want)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

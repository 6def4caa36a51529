package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weatherbot/internal/scheduler"
	"github.com/i474232898/weatherbot/internal/weather"
)

type fakeSource struct {
	status    scheduler.Status
	throttles map[string]time.Time
}

func (f fakeSource) Status() scheduler.Status { return f.status }
func (f fakeSource) Throttles() map[string]time.Time { return f.throttles }
func (f fakeSource) Throttle(key string) (time.Time, bool) {
	until, ok := f.throttles[key]
	return until, ok
}

var until = time.Date(2017, 3, 4, 14, 0, 0, 0, time.UTC)

func newApp() *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, fakeSource{
		status: scheduler.Status{
			CycleID:  "c1",
			Cycles:   3,
			Location: weather.Location{Name: "Morris"},
			Posts:    []scheduler.Post{{Kind: scheduler.KindSpecial, Text: "Do you even fog bro?", ThrottleKey: "fog"}},
		},
		throttles: map[string]time.Time{"default": until, "fog": until.Add(time.Hour)},
	})
	return app
}

func TestStatus(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var got scheduler.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.CycleID != "c1" || got.Cycles != 3 || len(got.Posts) != 1 || got.Posts[0].ThrottleKey != "fog" {
		t.Fatalf("status = %+v", got)
	}
}

func TestThrottles(t *testing.T) {
	resp, err := newApp().Test(httptest.NewRequest(http.MethodGet, "/api/v1/throttles", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []throttleEntry
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Key != "default" || got[1].Key != "fog" || !got[1].Until.Equal(until.Add(time.Hour)) {
		t.Fatalf("throttles = %+v", got)
	}
}

func TestThrottleByKey(t *testing.T) {
	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/throttles/fog", http.StatusOK},
		{"/api/v1/throttles/hot", http.StatusNotFound},
		{"/api/v1/throttles/" + strings.Repeat("k", 129), http.StatusBadRequest},
	}

	app := newApp()
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, resp.StatusCode)
		}
	}
}

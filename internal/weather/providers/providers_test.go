package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/i474232898/weatherbot/internal/common"
	"github.com/i474232898/weatherbot/internal/weather"
)

const darkSkyBody = `{
  "timezone": "America/Chicago",
  "currently": {"time": 1468700000, "summary": "Light Rain", "icon": "rain", "precipIntensity": 0.05,
    "precipProbability": 0.9, "precipType": "rain", "temperature": 55.2, "apparentTemperature": 55.2,
    "humidity": 0.93, "windSpeed": 12.4, "windBearing": 300},
  "daily": {"data": [{"summary": "Rain throughout the day.", "temperatureMin": 50.1, "temperatureMax": 61.7}]},
  "flags": {"units": "us"}
}`

func TestDarkSkyFetch(t *testing.T) {
	var gotPath, gotUnits, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUnits = r.URL.Query().Get("units")
		gotLang = r.URL.Query().Get("lang")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(darkSkyBody))
	}))
	defer srv.Close()

	p := NewDarkSkyProvider(srv.Client(), "secret", srv.URL+"/forecast")
	loc := weather.Location{Lat: 45.585, Lng: -95.91, Name: "Morris, MN"}

	snap, err := p.Fetch(context.Background(), loc, weather.UnitsUS, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(gotPath, "/forecast/secret/45.585000,-95.910000") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotUnits != "us" || gotLang != "en" {
		t.Errorf("unexpected query units=%q lang=%q", gotUnits, gotLang)
	}
	if snap.PrecipType != "rain" || snap.WindBearing != "NW" || snap.Location != loc {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestDarkSkyFetchInvalidPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timezone": "UTC", "flags": {"darksky-unavailable": "yes"}}`))
	}))
	defer srv.Close()

	p := NewDarkSkyProvider(srv.Client(), "secret", srv.URL)
	_, err := p.Fetch(context.Background(), weather.Location{}, weather.UnitsSI, "")
	if !errors.Is(err, weather.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestDarkSkyFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewDarkSkyProvider(srv.Client(), "secret", srv.URL)
	_, err := p.Fetch(context.Background(), weather.Location{}, weather.UnitsSI, "")
	if !errors.Is(err, common.ErrUnexpected) {
		t.Fatalf("expected ErrUnexpected, got %v", err)
	}
}

func TestDarkSkyRequiresKey(t *testing.T) {
	p := NewDarkSkyProvider(http.DefaultClient, "", "")
	if _, err := p.Fetch(context.Background(), weather.Location{}, weather.UnitsSI, ""); err == nil {
		t.Fatal("expected error without api key")
	}
}

const oneCallBody = `{
  "timezone": "Europe/Copenhagen",
  "current": {"dt": 1468700000, "temp": 8.5, "feels_like": 6.1, "humidity": 97, "wind_speed": 4.1, "wind_deg": 90,
    "weather": [{"id": 741, "main": "Fog", "description": "fog", "icon": "50n"}]},
  "daily": [{"dt": 1468645200, "summary": "Expect a day of fog", "temp": {"min": 5.0, "max": 11.2}}],
  "alerts": [{"sender_name": "DMI", "event": "Dense fog", "start": 1468699200, "end": 1468742400}]
}`

func TestOpenWeatherFetch(t *testing.T) {
	var gotUnits string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUnits = r.URL.Query().Get("units")
		w.Write([]byte(oneCallBody))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "key", srv.URL)
	snap, err := p.Fetch(context.Background(), weather.Location{Lat: 55.67, Lng: 12.56, Name: "Copenhagen"}, weather.UnitsCA, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUnits != "metric" {
		t.Errorf("units = %q, want metric", gotUnits)
	}
	if snap.Icon != "fog" || snap.Summary != "Fog" {
		t.Errorf("icon/summary = %q/%q", snap.Icon, snap.Summary)
	}
	if snap.Units.System != weather.UnitsSI || snap.Humidity != 97 || snap.WindBearing != "E" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Forecast.High != 11.2 || snap.Forecast.Summary != "Expect a day of fog" {
		t.Errorf("forecast = %+v", snap.Forecast)
	}
	if len(snap.Alerts) != 1 || snap.Alerts[0].Expires == nil {
		t.Errorf("alerts = %+v", snap.Alerts)
	}
}

func TestToRawForecastPrecipitation(t *testing.T) {
	var payload owmPayload
	temp, humidity := 33.0, 90.0
	payload.Timezone = "UTC"
	payload.Current = &owmCurrent{
		Temp:     &temp,
		Humidity: &humidity,
		Weather:  []owmCondition{{ID: 612, Main: "Snow", Description: "light shower sleet"}},
		Snow:     owmVolume{OneH: 25.4},
	}

	raw := toRawForecast(payload, weather.UnitsUS)
	if raw.Currently.PrecipType != "sleet" {
		t.Errorf("precip type = %q, want sleet", raw.Currently.PrecipType)
	}
	if raw.Currently.PrecipIntensity != 1 {
		t.Errorf("precip intensity = %v, want 1 in/h", raw.Currently.PrecipIntensity)
	}
	if raw.Currently.PrecipProbability != 1 {
		t.Errorf("precip probability = %v", raw.Currently.PrecipProbability)
	}
	if raw.Currently.Icon != "sleet" {
		t.Errorf("icon = %q", raw.Currently.Icon)
	}
}

func TestOpenWeatherMissingHumidityIsInvalid(t *testing.T) {
	body := strings.Replace(oneCallBody, `"humidity": 97, `, "", 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "key", srv.URL)
	_, err := p.Fetch(context.Background(), weather.Location{Lat: 55.67, Lng: 12.56}, weather.UnitsSI, "")
	if !errors.Is(err, weather.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
}

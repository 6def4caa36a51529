package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weatherbot/internal/common"
	"github.com/i474232898/weatherbot/internal/weather"
)

// DefaultOpenWeatherURL is the One Call 3.0 endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/3.0/onecall"

const mmPerInch = 25.4

// OpenWeatherProvider implements weather.Provider for the OpenWeatherMap One Call API.
// Responses are mapped onto the Dark Sky payload so they go through the same validation.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg common.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: common.HTTPClientConfig{
			Client:  client,
			Backoff: common.DefaultBackoff,
		},
		circuit: common.NewBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmVolume struct {
	OneH float64 `json:"1h"`
}

type owmCurrent struct {
	Dt        int64          `json:"dt"`
	Temp      *float64       `json:"temp"`
	FeelsLike float64        `json:"feels_like"`
	Humidity  *float64       `json:"humidity"`
	WindSpeed float64        `json:"wind_speed"`
	WindDeg   *float64       `json:"wind_deg"`
	Weather   []owmCondition `json:"weather"`
	Rain      owmVolume      `json:"rain"`
	Snow      owmVolume      `json:"snow"`
}

type owmPayload struct {
	Timezone string      `json:"timezone"`
	Current  *owmCurrent `json:"current"`
	Daily    []struct {
		Dt      int64  `json:"dt"`
		Summary string `json:"summary"`
		Temp    struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		Weather []owmCondition `json:"weather"`
	} `json:"daily"`
	Alerts []struct {
		SenderName string `json:"sender_name"`
		Event      string `json:"event"`
		Start      int64  `json:"start"`
		End        int64  `json:"end"`
	} `json:"alerts"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location, units weather.UnitSystem, lang string) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, fmt.Errorf("openweather api key is not configured")
	}

	// One Call only knows imperial and metric; metric maps onto si.
	owmUnits, system := "metric", weather.UnitsSI
	if units == weather.UnitsUS {
		owmUnits, system = "imperial", weather.UnitsUS
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", owmUnits)
		values.Set("lat", fmt.Sprintf("%f", loc.Lat))
		values.Set("lon", fmt.Sprintf("%f", loc.Lng))
		values.Set("exclude", "hourly,minutely")
		if lang != "" {
			values.Set("lang", lang)
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := common.DoRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	var payload owmPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode openweather response: %w", err)
	}

	return weather.Validate(toRawForecast(payload, system), loc)
}

// toRawForecast maps a One Call response onto the Dark Sky shape. Missing
// pieces stay nil so validation rejects them.
func toRawForecast(payload owmPayload, system weather.UnitSystem) weather.RawForecast {
	raw := weather.RawForecast{
		Timezone: payload.Timezone,
		Flags:    weather.RawFlags{Units: string(system)},
	}

	if c := payload.Current; c != nil {
		point := &weather.RawDataPoint{
			Time:                c.Dt,
			Temperature:         c.Temp,
			ApparentTemperature: c.FeelsLike,
			WindSpeed:           c.WindSpeed,
			WindBearing:         c.WindDeg,
		}
		if c.Humidity != nil {
			h := *c.Humidity / 100
			point.Humidity = &h
		}
		if len(c.Weather) > 0 {
			summary := sentenceCase(c.Weather[0].Description)
			point.Summary = &summary
			point.Icon = mapOpenWeatherIcon(c.Weather[0])
		}

		precipType, rate := "", 0.0
		switch {
		case c.Snow.OneH > 0:
			precipType, rate = "snow", c.Snow.OneH
		case c.Rain.OneH > 0:
			precipType, rate = "rain", c.Rain.OneH
		}
		if precipType != "" {
			if len(c.Weather) > 0 && c.Weather[0].ID >= 611 && c.Weather[0].ID <= 616 {
				precipType = "sleet"
			}
			if system == weather.UnitsUS {
				rate /= mmPerInch
			}
			// Observed, not forecast.
			point.PrecipType = precipType
			point.PrecipIntensity = rate
			point.PrecipProbability = 1
		}
		raw.Currently = point
	}

	if len(payload.Daily) > 0 {
		block := &weather.RawDataBlock{}
		for _, d := range payload.Daily {
			summary := d.Summary
			if summary == "" && len(d.Weather) > 0 {
				summary = sentenceCase(d.Weather[0].Description)
			}
			block.Data = append(block.Data, weather.RawDataPoint{
				Time:           d.Dt,
				Summary:        &summary,
				TemperatureMin: d.Temp.Min,
				TemperatureMax: d.Temp.Max,
			})
		}
		raw.Daily = block
	}

	for _, a := range payload.Alerts {
		end := a.End
		raw.Alerts = append(raw.Alerts, weather.RawAlert{
			Title:    a.Event,
			Time:     a.Start,
			Expires:  &end,
			Severity: a.SenderName,
		})
	}

	return raw
}

// mapOpenWeatherIcon translates OpenWeatherMap conditions into the Dark Sky icon vocabulary.
func mapOpenWeatherIcon(c owmCondition) string {
	night := strings.HasSuffix(c.Icon, "n")
	switch {
	case c.ID == 771 || c.ID == 781:
		return "heavy-wind"
	case c.Main == "Fog" || c.Main == "Mist" || c.Main == "Haze" || c.Main == "Smoke":
		return "fog"
	case c.Main == "Clear" && night:
		return "clear-night"
	case c.Main == "Clear":
		return "clear-day"
	case c.Main == "Clouds" && c.ID == 801 && night:
		return "partly-cloudy-night"
	case c.Main == "Clouds" && c.ID == 801:
		return "partly-cloudy-day"
	case c.Main == "Clouds":
		return "cloudy"
	case c.ID >= 611 && c.ID <= 616:
		return "sleet"
	case c.Main == "Rain" || c.Main == "Drizzle":
		return "rain"
	case c.Main == "Snow":
		return "snow"
	case c.Main == "Thunderstorm":
		return "thunderstorm"
	default:
		return strings.ToLower(c.Main)
	}
}

func sentenceCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

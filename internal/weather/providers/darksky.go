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

// DefaultDarkSkyURL is Pirate Weather, which serves the Dark Sky API format.
const DefaultDarkSkyURL = "https://api.pirateweather.net/forecast"

// DarkSkyProvider implements weather.Provider for Dark Sky compatible APIs.
type DarkSkyProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg common.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewDarkSkyProvider(client *http.Client, apiKey, baseURL string) *DarkSkyProvider {
	if baseURL == "" {
		baseURL = DefaultDarkSkyURL
	}
	return &DarkSkyProvider{
		name:    "darksky",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: common.HTTPClientConfig{
			Client:  client,
			Backoff: common.DefaultBackoff,
		},
		circuit: common.NewBreaker("darksky"),
	}
}

func (p *DarkSkyProvider) Name() string {
	return p.name
}

func (p *DarkSkyProvider) Fetch(ctx context.Context, loc weather.Location, units weather.UnitSystem, lang string) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, fmt.Errorf("darksky api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("units", string(units))
		values.Set("exclude", "hourly")
		if lang != "" {
			values.Set("lang", lang)
		}

		u := fmt.Sprintf("%s/%s/%f,%f?%s", p.baseURL, url.PathEscape(p.apiKey), loc.Lat, loc.Lng, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := common.DoRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	var payload weather.RawForecast
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, fmt.Errorf("decode darksky response: %w", err)
	}
	if payload.Flags.Units == "" {
		payload.Flags.Units = string(units)
	}

	return weather.Validate(payload, loc)
}

package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidSnapshot marks a provider response that must not be classified.
var ErrInvalidSnapshot = errors.New("invalid weather snapshot")

var validate = validator.New()

// RawForecast is the Dark Sky compatible forecast payload.
type RawForecast struct {
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Timezone  string        `json:"timezone" validate:"required"`
	Currently *RawDataPoint `json:"currently" validate:"required"`
	Minutely  *RawSummary   `json:"minutely"`
	Daily     *RawDataBlock `json:"daily" validate:"required"`
	Alerts    []RawAlert    `json:"alerts"`
	Flags     RawFlags      `json:"flags"`
}

// RawDataPoint is a single currently or daily entry. Only the
// currently block is held to the required tags below.
type RawDataPoint struct {
	Time                int64    `json:"time"`
	Summary             *string  `json:"summary" validate:"required"`
	Icon                string   `json:"icon"`
	PrecipIntensity     float64  `json:"precipIntensity"`
	PrecipProbability   float64  `json:"precipProbability"`
	PrecipType          string   `json:"precipType"`
	Temperature         *float64 `json:"temperature" validate:"required"`
	TemperatureMin      float64  `json:"temperatureMin"`
	TemperatureMax      float64  `json:"temperatureMax"`
	ApparentTemperature float64  `json:"apparentTemperature"`
	Humidity            *float64 `json:"humidity" validate:"required,gte=0,lte=1"`
	WindSpeed           float64  `json:"windSpeed"`
	WindBearing         *float64 `json:"windBearing"`
}

// RawDataBlock groups data points with a block-level summary.
type RawDataBlock struct {
	Summary string         `json:"summary"`
	Icon    string         `json:"icon"`
	Data    []RawDataPoint `json:"data" validate:"min=1"`
}

// RawSummary is a block read only for its summary line.
type RawSummary struct {
	Summary string `json:"summary"`
	Icon    string `json:"icon"`
}

// RawAlert is an alert as sent by the provider. Expires is optional.
type RawAlert struct {
	Title    string `json:"title"`
	Time     int64  `json:"time"`
	Expires  *int64 `json:"expires"`
	URI      string `json:"uri"`
	Severity string `json:"severity"`
}

// RawFlags carries the response metadata. The provider sets
// "darksky-unavailable" when it has no data for the point.
type RawFlags struct {
	Units       string          `json:"units"`
	Unavailable json.RawMessage `json:"darksky-unavailable,omitempty"`
}

// Validate turns a provider payload into a Snapshot for loc. Any missing
// required field, an unavailable flag or an unknown timezone yields an
// error wrapping ErrInvalidSnapshot.
func Validate(raw RawForecast, loc Location) (Snapshot, error) {
	if len(raw.Flags.Unavailable) > 0 {
		return Snapshot{}, fmt.Errorf("%w: provider flagged data unavailable", ErrInvalidSnapshot)
	}
	if err := validate.Struct(raw); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if raw.Currently.Summary == nil || strings.TrimSpace(*raw.Currently.Summary) == "" {
		return Snapshot{}, fmt.Errorf("%w: empty summary", ErrInvalidSnapshot)
	}

	zone, err := time.LoadLocation(raw.Timezone)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidSnapshot, raw.Timezone, err)
	}

	cur := raw.Currently
	precipType := cur.PrecipType
	if precipType == "" {
		precipType = "none"
	}
	bearing := UnknownDirection
	if cur.WindBearing != nil {
		bearing = CompassPoint(int(*cur.WindBearing))
	}

	today := raw.Daily.Data[0]
	snap := Snapshot{
		Time:                time.Unix(cur.Time, 0).UTC(),
		Temperature:         *cur.Temperature,
		ApparentTemperature: cur.ApparentTemperature,
		Humidity:            int(math.Round(*cur.Humidity * 100)),
		WindSpeed:           cur.WindSpeed,
		WindBearing:         bearing,
		PrecipIntensity:     cur.PrecipIntensity,
		PrecipProbability:   cur.PrecipProbability,
		PrecipType:          precipType,
		Summary:             *cur.Summary,
		Icon:                cur.Icon,
		Forecast: DailyForecast{
			High:    today.TemperatureMax,
			Low:     today.TemperatureMin,
			Summary: derefOr(today.Summary, raw.Daily.Summary),
		},
		Timezone: raw.Timezone,
		Units:    UnitsFor(raw.Flags.Units),
		Location: loc,
		TZ:       zone,
	}
	if raw.Minutely != nil {
		snap.Minutely = raw.Minutely.Summary
	}

	snap.Alerts = make([]Alert, 0, len(raw.Alerts))
	for _, a := range raw.Alerts {
		alert := Alert{
			Title:    a.Title,
			Onset:    time.Unix(a.Time, 0).UTC(),
			URI:      a.URI,
			Severity: a.Severity,
		}
		if a.Expires != nil {
			exp := time.Unix(*a.Expires, 0).UTC()
			alert.Expires = &exp
		}
		snap.Alerts = append(snap.Alerts, alert)
	}

	return snap, nil
}

func derefOr(s *string, def string) string {
	if s != nil && *s != "" {
		return *s
	}
	return def
}

package weather

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// alertLifetime is how long an alert without an expiration is considered active.
const alertLifetime = 72 * time.Hour

// UnknownDirection is the bearing used when the provider omits wind direction.
const UnknownDirection = "unknown direction"

// Location is a named point for which weather is fetched.
// Locations are compared structurally and replaced wholesale, never patched.
type Location struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s at %g,%g", l.Name, l.Lat, l.Lng)
}

// Alert is a provider-issued weather alert.
type Alert struct {
	Title    string     `json:"title"`
	Onset    time.Time  `json:"onset"`
	Expires  *time.Time `json:"expires,omitempty"`
	URI      string     `json:"uri"`
	Severity string     `json:"severity"`
}

// ExpiresAt is the explicit expiration, or three days after onset when absent.
func (a Alert) ExpiresAt() time.Time {
	if a.Expires != nil {
		return *a.Expires
	}
	return a.Onset.Add(alertLifetime)
}

// Expired reports whether now is past the alert's expiration.
func (a Alert) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt())
}

// Fingerprint is a stable id for the alert, used as its throttle key.
func (a Alert) Fingerprint() string {
	sum := sha256.Sum256([]byte(a.Title + a.Onset.UTC().Format("2006-01-02 15:04:05-07:00")))
	return hex.EncodeToString(sum[:])
}

// DailyForecast is the one-day-ahead outlook.
type DailyForecast struct {
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Summary string  `json:"summary"`
}

// Snapshot is one validated provider response. It is built once per poll
// cycle by Validate and never mutated afterwards.
type Snapshot struct {
	Time                time.Time     `json:"time"`
	Temperature         float64       `json:"temperature"`
	ApparentTemperature float64       `json:"apparentTemperature"`
	Humidity            int           `json:"humidity"`
	WindSpeed           float64       `json:"windSpeed"`
	WindBearing         string        `json:"windBearing"`
	PrecipIntensity     float64       `json:"precipIntensity"`
	PrecipProbability   float64       `json:"precipProbability"`
	PrecipType          string        `json:"precipType"`
	Summary             string        `json:"summary"`
	Icon                string        `json:"icon"`
	Forecast            DailyForecast `json:"forecast"`
	Minutely            string        `json:"minutely,omitempty"`
	Timezone            string        `json:"timezone"`
	Alerts              []Alert       `json:"alerts"`
	Units               Units         `json:"units"`
	Location            Location      `json:"location"`

	// TZ is the resolved Timezone; nil means UTC.
	TZ *time.Location `json:"-"`
}

// Zone is the provider timezone, UTC if it was never resolved.
func (s Snapshot) Zone() *time.Location {
	if s.TZ == nil {
		return time.UTC
	}
	return s.TZ
}

// Local converts t into the snapshot's timezone.
func (s Snapshot) Local(t time.Time) time.Time {
	return t.In(s.Zone())
}

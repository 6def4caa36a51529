package condition

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weatherbot/internal/common"
	"github.com/i474232898/weatherbot/internal/weather"
)

// AlertTimeFormat renders alert onset and expiry in the snapshot timezone.
const AlertTimeFormat = "Mon, Jan 02 at 15:04:05 MST"

// DefaultDryHumidity is the humidity percentage at or below which it is "dry".
const DefaultDryHumidity = 25

// minPrecipProbability is the probability treated as certain precipitation.
const minPrecipProbability = 0.80

// Condition is a classified weather state and the text to post for it.
type Condition struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Chooser returns an index in [0, n). It must not be called with n <= 0.
type Chooser func(n int) int

// AlertRegistry remembers which alerts were already rendered.
type AlertRegistry interface {
	Has(key string) bool
	RecordUntil(key string, until time.Time)
}

type Options struct {
	DryHumidity int
	Choose      Chooser
}

// Classifier turns snapshots into post texts using a template set.
type Classifier struct {
	tmpl        *Templates
	dryHumidity int
	choose      Chooser
}

func NewClassifier(tmpl *Templates, opts Options) *Classifier {
	if opts.DryHumidity <= 0 {
		opts.DryHumidity = DefaultDryHumidity
	}
	if opts.Choose == nil {
		opts.Choose = rand.IntN
	}
	return &Classifier{tmpl: tmpl, dryHumidity: opts.DryHumidity, choose: opts.Choose}
}

func (c *Classifier) pick(list []string) string {
	return list[c.choose(len(list))]
}

func temperature(v float64, unit string) string {
	return fmt.Sprintf("%dº%s", int(math.Round(v)), unit)
}

// Normal renders a routine conditions post.
func (c *Classifier) Normal(s weather.Snapshot) string {
	text := render(c.pick(c.tmpl.NormalConditions), map[string]string{
		"summary":  s.Summary,
		"temp":     temperature(s.Temperature, s.Units.Temperature),
		"location": s.Location.Name,
	})
	if s.Minutely != "" {
		text += " " + s.Minutely
	}
	return text
}

// Forecast renders the daily outlook post, with a random ending if any are configured.
func (c *Classifier) Forecast(s weather.Snapshot) string {
	text := render(c.pick(c.tmpl.Forecasts), map[string]string{
		"summary":       s.Forecast.Summary,
		"summary_lower": strings.ToLower(s.Forecast.Summary),
		"high":          temperature(s.Forecast.High, s.Units.TemperatureMax),
		"low":           temperature(s.Forecast.Low, s.Units.TemperatureMin),
	})
	if len(c.tmpl.ForecastEndings) > 0 {
		text += " " + c.pick(c.tmpl.ForecastEndings)
	}
	return text
}

// Precipitation reports "<intensity>-<type>" when precipitation is both
// likely and measurable, otherwise a "none" condition.
func (c *Classifier) Precipitation(s weather.Snapshot) Condition {
	none := Condition{Type: TypeNone}
	if s.PrecipProbability < minPrecipProbability || s.PrecipType == "" || s.PrecipType == TypeNone {
		return none
	}
	intensity := weather.PrecipIntensity(s.PrecipIntensity, s.Units.PrecipIntensity)
	if intensity == weather.IntensityNone {
		return none
	}
	list := c.tmpl.Precipitations[s.PrecipType][string(intensity)]
	if len(list) == 0 {
		return none
	}

	rate := strconv.FormatFloat(s.PrecipIntensity, 'f', -1, 64) + s.Units.PrecipIntensity
	return Condition{
		Type: string(intensity) + "-" + s.PrecipType,
		Text: render(c.pick(list), map[string]string{"rate": rate}),
	}
}

// Special classifies the snapshot into at most one notable condition.
// The first matching rule wins; precipitation short-circuits everything after wind chill.
func (c *Classifier) Special(s weather.Snapshot) Condition {
	f := s.Units.Fahrenheit()
	kind := ""

	switch {
	case (f && s.ApparentTemperature <= -30) || (!f && s.ApparentTemperature <= -34):
		kind = TypeWindChill
	default:
		if p := c.Precipitation(s); p.Type != TypeNone {
			return p
		}
		switch {
		case common.HasAny(s.Icon, "medium-wind"):
			kind = TypeMediumWind
		case common.HasAny(s.Icon, "heavy-wind") || strongWind(s.WindSpeed, s.Units.WindSpeed):
			kind = TypeHeavyWind
		case common.HasAny(s.Icon, "fog"):
			kind = TypeFog
		case (f && s.Temperature <= -20) || (!f && s.Temperature <= -28):
			kind = TypeCold
		case (f && s.Temperature >= 110) || (!f && s.Temperature >= 43):
			kind = TypeSuperHot
		case (f && s.Temperature >= 100) || (!f && s.Temperature >= 37):
			kind = TypeHot
		case s.Humidity <= c.dryHumidity:
			kind = TypeDry
		}
	}

	if kind == "" {
		return Condition{Type: TypeNormal}
	}
	return Condition{Type: kind, Text: c.renderSpecial(kind, s)}
}

func strongWind(speed float64, unit string) bool {
	switch unit {
	case "mph":
		return speed >= 35
	case "km/h":
		return speed >= 56
	case "m/s":
		return speed >= 15
	}
	return false
}

func (c *Classifier) renderSpecial(kind string, s weather.Snapshot) string {
	return render(c.pick(c.tmpl.SpecialConditions[kind]), map[string]string{
		"apparent_temp": temperature(s.ApparentTemperature, s.Units.ApparentTemperature),
		"temp":          temperature(s.Temperature, s.Units.Temperature),
		"wind_speed":    fmt.Sprintf("%d %s", int(math.Round(s.WindSpeed)), s.Units.WindSpeed),
		"wind_bearing":  s.WindBearing,
		"humidity":      strconv.Itoa(s.Humidity),
		"summary":       s.Summary,
		"location":      s.Location.Name,
	})
}

// Alert renders one alert with times shown in zone.
func (c *Classifier) Alert(a weather.Alert, zone *time.Location) string {
	values := map[string]string{
		"title": a.Title,
		"time":  a.Onset.In(zone).Format(AlertTimeFormat),
		"uri":   a.URI,
	}
	if a.Expires == nil {
		return strings.TrimSpace(render(c.pick(c.tmpl.Alerts.NoExpires), values))
	}
	values["expires"] = a.Expires.In(zone).Format(AlertTimeFormat)
	return strings.TrimSpace(render(c.pick(c.tmpl.Alerts.Expires), values))
}

// Alerts renders every active alert not yet in registry and registers each
// rendered fingerprint until the alert expires.
func (c *Classifier) Alerts(s weather.Snapshot, registry AlertRegistry, now time.Time) []string {
	var texts []string
	for _, a := range s.Alerts {
		if a.Expired(now) {
			continue
		}
		key := a.Fingerprint()
		if registry.Has(key) {
			continue
		}
		texts = append(texts, c.Alert(a, s.Zone()))
		registry.RecordUntil(key, a.ExpiresAt())
	}
	return texts
}

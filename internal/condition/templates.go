package condition

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/weatherbot/internal/weather"
)

// ErrInvalidTemplates is returned when a templates file is malformed or incomplete.
var ErrInvalidTemplates = errors.New("invalid templates")

// Special condition types the classifier can produce besides precipitation.
const (
	TypeNormal     = "normal"
	TypeNone       = "none"
	TypeWindChill  = "wind-chill"
	TypeMediumWind = "medium-wind"
	TypeHeavyWind  = "heavy-wind"
	TypeFog        = "fog"
	TypeCold       = "cold"
	TypeSuperHot   = "super-hot"
	TypeHot        = "hot"
	TypeDry        = "dry"
)

// SpecialTypes lists every non-precipitation special category, in precedence order.
var SpecialTypes = []string{
	TypeWindChill, TypeMediumWind, TypeHeavyWind, TypeFog,
	TypeCold, TypeSuperHot, TypeHot, TypeDry,
}

// PrecipTypes are the precipitation kinds a provider reports.
var PrecipTypes = []string{"rain", "snow", "sleet"}

// AlertTemplates holds the two alert variants.
type AlertTemplates struct {
	Expires   []string `yaml:"expires"`
	NoExpires []string `yaml:"no_expires"`
}

// Templates is the parsed strings file.
type Templates struct {
	Language          string                         `yaml:"language"`
	Forecasts         []string                       `yaml:"forecasts"`
	ForecastEndings   []string                       `yaml:"forecast_endings"`
	NormalConditions  []string                       `yaml:"normal_conditions"`
	SpecialConditions map[string][]string            `yaml:"special_conditions"`
	Precipitations    map[string]map[string][]string `yaml:"precipitations"`
	Alerts            AlertTemplates                 `yaml:"alerts"`
}

// Tokens each template group may reference.
var (
	forecastTokens = []string{"summary", "summary_lower", "high", "low"}
	normalTokens   = []string{"summary", "temp", "location"}
	specialTokens  = []string{"apparent_temp", "temp", "wind_speed", "wind_bearing", "humidity", "summary", "location"}
	precipTokens   = []string{"rate"}
	alertTokens    = []string{"title", "time", "expires", "uri"}
	noExpireTokens = []string{"title", "time", "uri"}
)

var tokenPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// LoadTemplates reads and validates a YAML templates file.
func LoadTemplates(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}
	t, err := ParseTemplates(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTemplates decodes and validates templates from YAML.
func ParseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplates, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that every group the classifier draws from is present and
// that no template references a token its group does not provide.
func (t *Templates) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	check := func(group string, list []string, allowed []string, required bool) {
		if required && len(list) == 0 {
			add("%s: at least one template required", group)
		}
		for i, s := range list {
			if bad := unknownTokens(s, allowed); len(bad) > 0 {
				add("%s[%d]: unknown tokens %s", group, i, strings.Join(bad, ", "))
			}
		}
	}

	check("forecasts", t.Forecasts, forecastTokens, true)
	check("forecast_endings", t.ForecastEndings, nil, false)
	check("normal_conditions", t.NormalConditions, normalTokens, true)
	check("alerts.expires", t.Alerts.Expires, alertTokens, true)
	check("alerts.no_expires", t.Alerts.NoExpires, noExpireTokens, true)

	for _, name := range SpecialTypes {
		check("special_conditions."+name, t.SpecialConditions[name], specialTokens, true)
	}
	for _, name := range sortedKeys(t.SpecialConditions) {
		if !contains(SpecialTypes, name) {
			check("special_conditions."+name, t.SpecialConditions[name], specialTokens, false)
		}
	}

	for _, kind := range PrecipTypes {
		for _, intensity := range weather.Intensities {
			group := fmt.Sprintf("precipitations.%s.%s", kind, intensity)
			check(group, t.Precipitations[kind][string(intensity)], precipTokens, true)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTemplates, strings.Join(problems, "; "))
	}
	return nil
}

func unknownTokens(s string, allowed []string) []string {
	var bad []string
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		if !contains(allowed, m[1]) {
			bad = append(bad, "{"+m[1]+"}")
		}
	}
	return bad
}

// render substitutes {token} placeholders.
func render(s string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package weather

import (
	"errors"
	"strconv"
	"strings"
)

// UnitSystem is the provider unit code a snapshot was requested in.
type UnitSystem string

const (
	UnitsUS  UnitSystem = "us"
	UnitsCA  UnitSystem = "ca"
	UnitsUK2 UnitSystem = "uk2"
	UnitsSI  UnitSystem = "si"
)

// Units is the measurement unit of every field the provider reports.
type Units struct {
	System               UnitSystem `json:"unit"`
	NearestStormDistance string     `json:"nearestStormDistance"`
	PrecipIntensity      string     `json:"precipIntensity"`
	PrecipIntensityMax   string     `json:"precipIntensityMax"`
	PrecipAccumulation   string     `json:"precipAccumulation"`
	Temperature          string     `json:"temperature"`
	TemperatureMin       string     `json:"temperatureMin"`
	TemperatureMax       string     `json:"temperatureMax"`
	ApparentTemperature  string     `json:"apparentTemperature"`
	DewPoint             string     `json:"dewPoint"`
	WindSpeed            string     `json:"windSpeed"`
	Pressure             string     `json:"pressure"`
	Visibility           string     `json:"visibility"`
}

func celsius(system UnitSystem, storm, wind, visibility string) Units {
	return Units{
		System:               system,
		NearestStormDistance: storm,
		PrecipIntensity:      "mm/h",
		PrecipIntensityMax:   "mm/h",
		PrecipAccumulation:   "cm",
		Temperature:          "C",
		TemperatureMin:       "C",
		TemperatureMax:       "C",
		ApparentTemperature:  "C",
		DewPoint:             "C",
		WindSpeed:            wind,
		Pressure:             "hPa",
		Visibility:           visibility,
	}
}

var unitTables = map[UnitSystem]Units{
	UnitsUS: {
		System:               UnitsUS,
		NearestStormDistance: "mph",
		PrecipIntensity:      "in/h",
		PrecipIntensityMax:   "in/h",
		PrecipAccumulation:   "in",
		Temperature:          "F",
		TemperatureMin:       "F",
		TemperatureMax:       "F",
		ApparentTemperature:  "F",
		DewPoint:             "F",
		WindSpeed:            "mph",
		Pressure:             "mb",
		Visibility:           "mi",
	},
	UnitsCA:  celsius(UnitsCA, "km", "km/h", "km"),
	UnitsUK2: celsius(UnitsUK2, "mi", "mph", "mi"),
	UnitsSI:  celsius(UnitsSI, "km", "m/s", "km"),
}

// UnitsFor returns the unit table for code. Unknown codes resolve to si.
func UnitsFor(code string) Units {
	if u, ok := unitTables[UnitSystem(strings.ToLower(strings.TrimSpace(code)))]; ok {
		return u
	}
	return unitTables[UnitsSI]
}

// Fahrenheit reports whether temperatures in this table are in °F.
func (u Units) Fahrenheit() bool {
	return u.Temperature == "F"
}

// CompassPoint maps wind degrees onto one of 8 compass points. The N bucket
// spans both ends of the circle; nothing is normalized modulo 360 first.
func CompassPoint(degrees int) string {
	switch {
	case degrees < 23 || degrees >= 338:
		return "N"
	case degrees < 68:
		return "NE"
	case degrees < 113:
		return "E"
	case degrees < 158:
		return "SE"
	case degrees < 203:
		return "S"
	case degrees < 248:
		return "SW"
	case degrees < 293:
		return "W"
	default:
		return "NW"
	}
}

// WindCompass parses raw as integer degrees and returns its compass point,
// or "" when raw is not a number.
func WindCompass(raw string) string {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return CompassPoint(n)
	}
	return ""
}

var errNoPoints = errors.New("centerpoint: no coordinates")

// Centerpoint averages a list of [longitude, latitude] pairs (the order used
// by GeoJSON bounding boxes) and returns the mean latitude and longitude.
// It is a plain arithmetic mean, not a geodesic centroid.
func Centerpoint(points [][2]float64) (lat, lng float64, err error) {
	if len(points) == 0 {
		return 0, 0, errNoPoints
	}
	for _, p := range points {
		lng += p[0]
		lat += p[1]
	}
	n := float64(len(points))
	return lat / n, lng / n, nil
}

package location

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weatherbot/internal/common"
)

var errNoAddress = errors.New("no address for coordinates")

// geocoder keeps its key in a package variable.
var geocoderMu sync.Mutex

// GoogleGeocoder resolves coordinates to a "City, State" name with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey  string
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey, reverse: geocoder.GeocodingReverse}
}

func (g *GoogleGeocoder) PlaceName(ctx context.Context, lat, lng float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	geocoderMu.Lock()
	geocoder.ApiKey = g.apiKey
	addrs, err := g.reverse(geocoder.Location{Latitude: lat, Longitude: lng})
	geocoderMu.Unlock()

	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(addrs) == 0 {
		return "", errNoAddress
	}
	return addressName(addrs[0]), nil
}

func addressName(a geocoder.Address) string {
	if a.City != "" && a.State != "" {
		return a.City + ", " + a.State
	}
	return common.FirstNonEmpty(a.City, a.FormattedAddress)
}

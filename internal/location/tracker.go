package location

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weatherbot/internal/logging"
	"github.com/i474232898/weatherbot/internal/social"
	"github.com/i474232898/weatherbot/internal/weather"
)

// timelineDepth is how many recent posts are searched for location data.
const timelineDepth = 20

// DefaultInterval is how often the monitored timeline is re-read.
const DefaultInterval = 30 * time.Minute

// TimelineSource reads a user's recent posts, newest first.
type TimelineSource interface {
	Timeline(ctx context.Context, user string, count int) ([]social.Tweet, error)
}

// ReverseGeocoder names a bare coordinate.
type ReverseGeocoder interface {
	PlaceName(ctx context.Context, lat, lng float64) (string, error)
}

type Options struct {
	User string
	// FallbackName names coordinates that carry no place.
	FallbackName string
	Interval     time.Duration
	// Geocoder is consulted before FallbackName. Optional.
	Geocoder ReverseGeocoder
}

// Tracker follows the location of a monitored account's recent posts.
type Tracker struct {
	source TimelineSource
	opts   Options

	mu        sync.Mutex
	current   weather.Location
	lastCheck time.Time
	checked   bool
}

func NewTracker(source TimelineSource, initial weather.Location, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Tracker{source: source, opts: opts, current: initial}
}

// Current returns the tracked location, re-reading the timeline when the
// refresh interval has elapsed. Failures keep the previous location.
func (t *Tracker) Current(ctx context.Context, now time.Time) weather.Location {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.checked && now.Sub(t.lastCheck) < t.opts.Interval {
		return t.current
	}
	t.lastCheck = now
	t.checked = true

	tweets, err := t.source.Timeline(ctx, t.opts.User, timelineDepth)
	if err != nil {
		log.Printf("ERROR: read timeline of %s: %v", t.opts.User, err)
		return t.current
	}

	loc, ok := t.fromTweets(ctx, tweets)
	if !ok {
		logging.Debugf("no location in the last %d posts of %s, keeping %s", len(tweets), t.opts.User, t.current)
		return t.current
	}
	if loc != t.current {
		log.Printf("INFO: location changed from %s to %s", t.current, loc)
		t.current = loc
	}
	return t.current
}

// fromTweets returns the location of the newest post carrying any: exact
// coordinates, or the center of its tagged place.
func (t *Tracker) fromTweets(ctx context.Context, tweets []social.Tweet) (weather.Location, bool) {
	for _, tw := range tweets {
		if tw.Coordinates != nil {
			lng, lat := tw.Coordinates.Coordinates[0], tw.Coordinates.Coordinates[1]
			return weather.Location{Lat: lat, Lng: lng, Name: t.nameFor(ctx, tw.Place, lat, lng)}, true
		}
		if tw.Place != nil && len(tw.Place.BoundingBox.Coordinates) > 0 {
			lat, lng, err := weather.Centerpoint(tw.Place.BoundingBox.Coordinates[0])
			if err != nil {
				logging.Debugf("skip place %q: %v", tw.Place.FullName, err)
				continue
			}
			return weather.Location{Lat: lat, Lng: lng, Name: tw.Place.FullName}, true
		}
	}
	return weather.Location{}, false
}

func (t *Tracker) nameFor(ctx context.Context, place *social.Place, lat, lng float64) string {
	if place != nil && place.FullName != "" {
		return place.FullName
	}
	if t.opts.Geocoder != nil {
		name, err := t.opts.Geocoder.PlaceName(ctx, lat, lng)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			log.Printf("WARN: reverse geocode %g,%g: %v", lat, lng, err)
		}
	}
	return t.opts.FallbackName
}

package location

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weatherbot/internal/social"
	"github.com/i474232898/weatherbot/internal/weather"
)

type fakeTimeline struct {
	tweets []social.Tweet
	err    error
	calls  int
	count  int
}

func (f *fakeTimeline) Timeline(_ context.Context, _ string, count int) ([]social.Tweet, error) {
	f.calls++
	f.count = count
	return f.tweets, f.err
}

type fakeGeocoder struct {
	name string
	err  error
}

func (f fakeGeocoder) PlaceName(context.Context, float64, float64) (string, error) {
	return f.name, f.err
}

var (
	home = weather.Location{Lat: 45.585, Lng: -95.91, Name: "Morris, MN"}
	t0   = time.Date(2017, 3, 4, 12, 0, 0, 0, time.UTC)
)

func stPaulPlace() *social.Place {
	return &social.Place{
		FullName: "St Paul, MN",
		BoundingBox: social.BoundingBox{Coordinates: [][][2]float64{{
			{-93.207783, 44.89076}, {-93.003514, 44.89076},
			{-93.003514, 44.992279}, {-93.207783, 44.992279},
		}}},
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCurrentPrefersNewestLocatedPost(t *testing.T) {
	tests := []struct {
		name   string
		tweets []social.Tweet
		opts   Options
		want   weather.Location
	}{
		{
			name: "coordinates with place",
			tweets: []social.Tweet{
				{ID: "3"},
				{ID: "2", Coordinates: &social.Point{Coordinates: [2]float64{-93.1, 44.9}}, Place: stPaulPlace()},
			},
			want: weather.Location{Lat: 44.9, Lng: -93.1, Name: "St Paul, MN"},
		},
		{
			name: "coordinates without place use fallback name",
			tweets: []social.Tweet{
				{ID: "2", Coordinates: &social.Point{Coordinates: [2]float64{-93.1, 44.9}}},
			},
			opts: Options{FallbackName: "The Wilderness"},
			want: weather.Location{Lat: 44.9, Lng: -93.1, Name: "The Wilderness"},
		},
		{
			name: "coordinates without place use geocoder",
			tweets: []social.Tweet{
				{ID: "2", Coordinates: &social.Point{Coordinates: [2]float64{-93.1, 44.9}}},
			},
			opts: Options{FallbackName: "The Wilderness", Geocoder: fakeGeocoder{name: "Saint Paul, MN"}},
			want: weather.Location{Lat: 44.9, Lng: -93.1, Name: "Saint Paul, MN"},
		},
		{
			name: "geocoder failure uses fallback name",
			tweets: []social.Tweet{
				{ID: "2", Coordinates: &social.Point{Coordinates: [2]float64{-93.1, 44.9}}},
			},
			opts: Options{FallbackName: "The Wilderness", Geocoder: fakeGeocoder{err: errors.New("quota")}},
			want: weather.Location{Lat: 44.9, Lng: -93.1, Name: "The Wilderness"},
		},
		{
			name: "newest place wins over older coordinates",
			tweets: []social.Tweet{
				{ID: "3", Place: stPaulPlace()},
				{ID: "2", Coordinates: &social.Point{Coordinates: [2]float64{-95.91, 45.585}}},
			},
			want: weather.Location{Lat: 44.9415195, Lng: -93.1056485, Name: "St Paul, MN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeTimeline{tweets: tt.tweets}
			tr := NewTracker(src, home, tt.opts)

			got := tr.Current(context.Background(), t0)
			if !near(got.Lat, tt.want.Lat) || !near(got.Lng, tt.want.Lng) || got.Name != tt.want.Name {
				t.Fatalf("Current = %+v, want %+v", got, tt.want)
			}
			if src.count != 20 {
				t.Fatalf("timeline depth = %d, want 20", src.count)
			}
		})
	}
}

func TestCurrentKeepsPreviousLocation(t *testing.T) {
	t.Run("fetch error", func(t *testing.T) {
		tr := NewTracker(&fakeTimeline{err: errors.New("boom")}, home, Options{})
		if got := tr.Current(context.Background(), t0); got != home {
			t.Fatalf("Current = %+v, want %+v", got, home)
		}
	})

	t.Run("no located posts", func(t *testing.T) {
		tr := NewTracker(&fakeTimeline{tweets: []social.Tweet{{ID: "1"}, {ID: "2"}}}, home, Options{})
		if got := tr.Current(context.Background(), t0); got != home {
			t.Fatalf("Current = %+v, want %+v", got, home)
		}
	})
}

func TestCurrentRespectsInterval(t *testing.T) {
	src := &fakeTimeline{tweets: []social.Tweet{{ID: "1", Place: stPaulPlace()}}}
	tr := NewTracker(src, home, Options{Interval: 30 * time.Minute})

	tr.Current(context.Background(), t0)
	tr.Current(context.Background(), t0.Add(10*time.Minute))
	if src.calls != 1 {
		t.Fatalf("timeline read %d times inside the interval", src.calls)
	}

	src.tweets = nil
	got := tr.Current(context.Background(), t0.Add(31*time.Minute))
	if src.calls != 2 {
		t.Fatalf("timeline not re-read after the interval")
	}
	if got.Name != "St Paul, MN" {
		t.Fatalf("location should be kept when the new timeline has none, got %+v", got)
	}
}

func TestGoogleGeocoderName(t *testing.T) {
	g := NewGoogleGeocoder("key")
	g.reverse = func(loc geocoder.Location) ([]geocoder.Address, error) {
		if geocoder.ApiKey != "key" || loc.Latitude != 44.9 {
			t.Errorf("unexpected call: key=%q loc=%+v", geocoder.ApiKey, loc)
		}
		return []geocoder.Address{{City: "Saint Paul", State: "Minnesota"}}, nil
	}

	name, err := g.PlaceName(context.Background(), 44.9, -93.1)
	if err != nil || name != "Saint Paul, Minnesota" {
		t.Fatalf("PlaceName = %q, %v", name, err)
	}

	g.reverse = func(geocoder.Location) ([]geocoder.Address, error) { return nil, nil }
	if _, err := g.PlaceName(context.Background(), 0, 0); !errors.Is(err, errNoAddress) {
		t.Fatalf("expected errNoAddress, got %v", err)
	}
}

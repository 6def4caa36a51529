package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/i474232898/weatherbot/internal/logging"
	"github.com/i474232898/weatherbot/internal/social"
	"github.com/i474232898/weatherbot/internal/store"
	"github.com/i474232898/weatherbot/internal/weather"
)

const (
	retryTag     = "retry"
	cycleTimeout = 2 * time.Minute
)

// Poster publishes a post, optionally geotagged.
type Poster interface {
	Post(ctx context.Context, text string, loc *weather.Location) (social.Tweet, error)
}

// LocationSource yields the location to fetch weather for.
type LocationSource interface {
	Current(ctx context.Context, now time.Time) weather.Location
}

// FixedLocation is a LocationSource that never moves.
type FixedLocation weather.Location

func (f FixedLocation) Current(context.Context, time.Time) weather.Location {
	return weather.Location(f)
}

type Options struct {
	Refresh    time.Duration
	RetryDelay time.Duration
	Units      weather.UnitSystem
	Language   string

	Hashtag string
	// TweetLocation geotags posts with the snapshot location.
	TweetLocation bool
	// PrefixLocation prepends "Name: " to every post.
	PrefixLocation bool

	CachePath string
	Now       func() time.Time
}

// Status describes the most recent poll cycle.
type Status struct {
	CycleID   string            `json:"cycleId"`
	Cycles    int               `json:"cycles"`
	LastRun   time.Time         `json:"lastRun"`
	LastError string            `json:"lastError,omitempty"`
	Location  weather.Location  `json:"location"`
	Snapshot  *weather.Snapshot `json:"snapshot,omitempty"`
	Posts     []Post            `json:"posts"`
}

// Bot runs the poll cycle on a gocron schedule.
type Bot struct {
	scheduler *gocron.Scheduler
	provider  weather.Provider
	poster    Poster
	locations LocationSource
	planner   *Planner
	throttles *store.Throttles
	opts      Options

	// cycle serializes RunCycle so throttle check-then-record stays atomic.
	cycle sync.Mutex

	statusMu sync.RWMutex
	status   Status

	fatal chan error
}

func New(provider weather.Provider, poster Poster, locations LocationSource, planner *Planner, throttles *store.Throttles, opts Options) *Bot {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Bot{
		scheduler: s,
		provider:  provider,
		poster:    poster,
		locations: locations,
		planner:   planner,
		throttles: throttles,
		opts:      opts,
		fatal:     make(chan error, 1),
	}
}

// Start schedules the poll job, running the first cycle immediately.
func (b *Bot) Start() error {
	if b.opts.Refresh <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", b.opts.Refresh)
	}

	if _, err := b.scheduler.Every(b.opts.Refresh).Do(b.runJob); err != nil {
		return err
	}

	b.scheduler.StartAsync()
	log.Printf("INFO: bot started, polling every %v", b.opts.Refresh)
	return nil
}

// Stop stops the scheduler and cancels any future cycles.
func (b *Bot) Stop() {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
}

// Fatal delivers the error of a cycle that crashed. The bot should not be
// kept running after a value arrives.
func (b *Bot) Fatal() <-chan error {
	return b.fatal
}

func (b *Bot) runJob() {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("poll cycle panic: %v\n%s", r, debug.Stack())
			select {
			case b.fatal <- err:
			default:
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	err := b.RunCycle(ctx)
	if err == nil || errors.Is(err, weather.ErrInvalidSnapshot) {
		return
	}
	b.scheduleRetry()
}

func (b *Bot) scheduleRetry() {
	_ = b.scheduler.RemoveByTag(retryTag)

	at := b.opts.Now().Add(b.opts.RetryDelay)
	_, err := b.scheduler.Every(b.opts.RetryDelay).Tag(retryTag).StartAt(at).LimitRunsTo(1).Do(b.runJob)
	if err != nil {
		log.Printf("ERROR: schedule retry: %v", err)
		return
	}
	log.Printf("INFO: retrying in %v", b.opts.RetryDelay)
}

// RunCycle performs one poll: locate, fetch, plan, post, then persist throttles.
// A fetch error or invalid snapshot leaves all state untouched.
func (b *Bot) RunCycle(ctx context.Context) error {
	b.cycle.Lock()
	defer b.cycle.Unlock()

	now := b.opts.Now().UTC()
	id := uuid.NewString()
	logging.Debugf("cycle %s: start", id)

	loc := b.locations.Current(ctx, now)
	snap, err := b.provider.Fetch(ctx, loc, b.opts.Units, b.opts.Language)
	if err != nil {
		if errors.Is(err, weather.ErrInvalidSnapshot) {
			log.Printf("WARN: cycle %s: skipping invalid weather data for %s: %v", id, loc, err)
		} else {
			log.Printf("ERROR: cycle %s: fetch weather for %s from %s: %v", id, loc, b.provider.Name(), err)
		}
		b.recordStatus(id, now, loc, nil, nil, err)
		return err
	}

	posts := b.planner.Plan(now, snap)
	for _, p := range posts {
		b.publish(ctx, id, now, snap, p)
	}

	if n := b.throttles.Prune(now); n > 0 {
		logging.Debugf("cycle %s: pruned %d expired throttles, %d left", id, n, b.throttles.Len())
	}
	if b.opts.CachePath != "" {
		if err := b.throttles.Save(b.opts.CachePath); err != nil {
			log.Printf("ERROR: cycle %s: save throttles: %v", id, err)
		}
	}

	b.recordStatus(id, now, loc, &snap, posts, nil)
	logging.Debugf("cycle %s: done, %d posts", id, len(posts))
	return nil
}

func (b *Bot) publish(ctx context.Context, cycleID string, now time.Time, snap weather.Snapshot, p Post) {
	text := b.decorate(p.Text, snap.Location)

	var geo *weather.Location
	if b.opts.TweetLocation {
		l := snap.Location
		geo = &l
	}

	if _, err := b.poster.Post(ctx, text, geo); err != nil {
		switch {
		case errors.Is(err, social.ErrDuplicate), errors.Is(err, social.ErrRateLimited):
			log.Printf("WARN: cycle %s: %s post skipped: %v", cycleID, p.Kind, err)
		default:
			log.Printf("ERROR: cycle %s: %s post failed: %v", cycleID, p.Kind, err)
		}
		return
	}

	log.Printf("INFO: cycle %s: posted %s: %s", cycleID, p.Kind, text)
	if p.ThrottleKey != "" {
		b.throttles.Record(p.ThrottleKey, now, p.ThrottleMinutes)
	}
}

func (b *Bot) decorate(text string, loc weather.Location) string {
	if b.opts.Hashtag != "" {
		text += " " + b.opts.Hashtag
	}
	if b.opts.PrefixLocation && loc.Name != "" {
		text = loc.Name + ": " + text
	}
	return text
}

func (b *Bot) recordStatus(id string, now time.Time, loc weather.Location, snap *weather.Snapshot, posts []Post, err error) {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	b.status.CycleID = id
	b.status.Cycles++
	b.status.LastRun = now
	b.status.Location = loc
	b.status.LastError = ""
	if err != nil {
		b.status.LastError = err.Error()
		return
	}
	b.status.Snapshot = snap
	b.status.Posts = posts
}

// Status returns a copy of the latest cycle status.
func (b *Bot) Status() Status {
	b.statusMu.RLock()
	defer b.statusMu.RUnlock()

	s := b.status
	s.Posts = append([]Post(nil), b.status.Posts...)
	return s
}

// Throttles returns the current throttle entries.
func (b *Bot) Throttles() map[string]time.Time {
	return b.throttles.Snapshot()
}

// Throttle returns the entry for a single key.
func (b *Bot) Throttle(key string) (time.Time, bool) {
	return b.throttles.Get(key)
}

package scheduler

import (
	"sync"
	"time"

	"github.com/i474232898/weatherbot/internal/condition"
	"github.com/i474232898/weatherbot/internal/config"
	"github.com/i474232898/weatherbot/internal/store"
	"github.com/i474232898/weatherbot/internal/weather"
)

// Kind says why a post was produced.
type Kind string

const (
	KindAlert      Kind = "alert"
	KindForecast   Kind = "forecast"
	KindConditions Kind = "conditions"
	KindSpecial    Kind = "special"
)

// Post is one text the bot decided to publish this cycle.
type Post struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`

	// ThrottleKey, when set, is recorded for ThrottleMinutes once the post succeeds.
	ThrottleKey     string `json:"throttleKey,omitempty"`
	ThrottleMinutes int    `json:"throttleMinutes,omitempty"`
}

// Schedule is the fixed posting timetable.
type Schedule struct {
	Forecast   config.TimeOfDay
	Conditions []config.TimeOfDay
	// Refresh is the poll interval; a slot fires on the first cycle inside
	// [slot, slot+Refresh) in the snapshot's local time.
	Refresh   time.Duration
	Throttles config.Throttles
}

// Planner decides what to post for a snapshot.
type Planner struct {
	classifier *condition.Classifier
	throttles  *store.Throttles
	schedule   Schedule

	mu sync.Mutex
	// fired remembers the last slot instant posted per slot, so a retry
	// cycle inside the same window does not post it twice.
	fired map[string]time.Time
}

func NewPlanner(classifier *condition.Classifier, throttles *store.Throttles, schedule Schedule) *Planner {
	return &Planner{
		classifier: classifier,
		throttles:  throttles,
		schedule:   schedule,
		fired:      make(map[string]time.Time),
	}
}

// Plan returns the posts due at now, in posting order: new alerts, the
// forecast, routine conditions, then a special condition if its throttle allows.
// Alert fingerprints are registered as a side effect.
func (p *Planner) Plan(now time.Time, snap weather.Snapshot) []Post {
	p.mu.Lock()
	defer p.mu.Unlock()

	var posts []Post

	for _, text := range p.classifier.Alerts(snap, p.throttles, now) {
		posts = append(posts, Post{Kind: KindAlert, Text: text})
	}

	local := snap.Local(now)
	if p.due(string(KindForecast), p.schedule.Forecast, local) {
		posts = append(posts, Post{Kind: KindForecast, Text: p.classifier.Forecast(snap)})
	}
	for _, slot := range p.schedule.Conditions {
		if p.due(string(KindConditions)+" "+slot.String(), slot, local) {
			posts = append(posts, Post{Kind: KindConditions, Text: p.classifier.Normal(snap)})
		}
	}

	special := p.classifier.Special(snap)
	if special.Type != condition.TypeNormal && p.throttles.IsAllowed(special.Type, now) {
		posts = append(posts, Post{
			Kind:            KindSpecial,
			Text:            special.Text,
			ThrottleKey:     special.Type,
			ThrottleMinutes: p.schedule.Throttles.Minutes(special.Type),
		})
	}
	return posts
}

func (p *Planner) due(key string, slot config.TimeOfDay, local time.Time) bool {
	at := slot.On(local)
	if local.Before(at) || !local.Before(at.Add(p.schedule.Refresh)) {
		return false
	}
	if last, ok := p.fired[key]; ok && last.Equal(at) {
		return false
	}
	p.fired[key] = at
	return true
}

package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/progress"
)

// PrometheusSink exports entry lifecycle metrics derived from status events.
type PrometheusSink struct {
	entriesStarted  prometheus.Counter
	entriesFinished *prometheus.CounterVec
	entriesRunning  prometheus.Gauge
	entryRuntime    *prometheus.HistogramVec
	stageEvents     *prometheus.CounterVec

	fetchRequests *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	tracker *entryTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		entriesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_status_entries_started_total",
			Help: "Entry attempts that have started.",
		}),
		entriesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_status_entries_finished_total",
			Help: "Entry attempts finished, partitioned by result.",
		}, []string{"result"}),
		entriesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_status_entries_running",
			Help: "Entry attempts currently in flight.",
		}),
		entryRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_status_entry_runtime_seconds",
			Help:    "Wall time per finished entry attempt.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		stageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_status_stage_events_total",
			Help: "Pipeline stage completions, partitioned by stage.",
		}, []string{"stage"}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_status_fetches_total",
			Help: "Fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_status_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by site and status class.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"site", "status_class"}),
		tracker: newEntryTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.entriesStarted,
		s.entriesFinished,
		s.entriesRunning,
		s.entryRuntime,
		s.stageEvents,
		s.fetchRequests,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register status collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageEntryStart:
		s.entriesStarted.Inc()
		if s.tracker.start(evt.EntryID) {
			s.entriesRunning.Inc()
		}
	case progress.StageEntryDone, progress.StageEntryRetry, progress.StageEntryFailed:
		result := resultLabel(evt.Stage)
		s.entriesFinished.WithLabelValues(result).Inc()
		if evt.Dur > 0 {
			s.entryRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
		}
		if s.tracker.complete(evt.EntryID) {
			s.entriesRunning.Dec()
		}
	case progress.StageFetch:
		s.stageEvents.WithLabelValues(string(evt.Stage)).Inc()
		s.handleFetchEvent(evt)
	default:
		s.stageEvents.WithLabelValues(string(evt.Stage)).Inc()
	}
}

func resultLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageEntryDone:
		return "completed"
	case progress.StageEntryRetry:
		return "retried"
	default:
		return "failed"
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(site, statusClass).Inc()
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(site, statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type entryTracker struct {
	mu      sync.Mutex
	running map[int64]struct{}
}

func newEntryTracker() *entryTracker {
	return &entryTracker{running: make(map[int64]struct{})}
}

func (t *entryTracker) start(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *entryTracker) complete(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

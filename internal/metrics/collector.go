package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Event is one entry in the collector's recent activity log.
type Event struct {
	Time   time.Time
	Detail string
}

// Collector aggregates per-process statistics for display.
type Collector struct {
	session      *SessionStats
	recentEvents []Event
	mu           sync.RWMutex
	maxEvents    int
	now          func() time.Time
}

// SessionStats holds current process metrics.
type SessionStats struct {
	StartTime      time.Time
	RequestCount   int
	RouterHits     int
	PlannerRuns    int
	ToolCalls      int
	ToolFailures   int
	Retries        int
	RateLimited    int
	TotalLatencyMs int64
	SuccessCount   int
	FailureCount   int
	ActiveSessions int
	LastEvent      string
	LastEventTime  time.Time
}

// NewCollector creates a metrics collector.
func NewCollector() *Collector {
	return &Collector{
		session:      &SessionStats{StartTime: time.Now()},
		recentEvents: make([]Event, 0),
		maxEvents:    50,
		now:          time.Now,
	}
}

// GetSessionStats returns current session stats (thread-safe).
func (c *Collector) GetSessionStats() *SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Return a copy
	stats := *c.session
	return &stats
}

// GetRecentEvents returns the most recent n events, oldest first.
func (c *Collector) GetRecentEvents(n int) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.recentEvents) {
		n = len(c.recentEvents)
	}
	start := len(c.recentEvents) - n

	events := make([]Event, n)
	copy(events, c.recentEvents[start:])
	return events
}

// addEvent appends to the ring and updates the last-event fields.
// Caller holds mu.
func (c *Collector) addEvent(detail string) {
	now := c.now()
	c.recentEvents = append(c.recentEvents, Event{Time: now, Detail: detail})
	if len(c.recentEvents) > c.maxEvents {
		c.recentEvents = c.recentEvents[1:]
	}
	c.session.LastEvent = detail
	c.session.LastEventTime = now
}

func (c *Collector) recordRequest(source, outcome string, took time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.RequestCount++
	c.session.TotalLatencyMs += took.Milliseconds()

	switch source {
	case "router":
		c.session.RouterHits++
	case "planner":
		c.session.PlannerRuns++
	}

	switch outcome {
	case "final_answer":
		c.session.SuccessCount++
	case "rate_limited":
		c.session.RateLimited++
		c.session.FailureCount++
	default:
		c.session.FailureCount++
	}

	c.addEvent(fmt.Sprintf("%s: %s", source, outcome))
}

func (c *Collector) recordTool(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.ToolCalls++
	if err != nil {
		c.session.ToolFailures++
		c.addEvent("tool failed: " + name)
		return
	}
	c.addEvent("tool: " + name)
}

func (c *Collector) recordRetry(attempt int, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Retries++
	c.addEvent(fmt.Sprintf("retry %d in %s", attempt+1, delay.Round(time.Millisecond)))
}

func (c *Collector) setActiveSessions(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.ActiveSessions = n
}

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.ObserveOrchestration("router", "final_answer", 5*time.Millisecond)
	r.ObserveOrchestration("planner", "final_answer", 2*time.Second)
	r.ObserveOrchestration("planner", "rate_limited", time.Second)
	r.ObserveRouterHit("get_weather")
	r.ObserveTool("web_search", nil, 30*time.Millisecond)
	r.ObserveTool("web_search", errors.New("offline"), 10*time.Millisecond)
	r.ObserveRetry(0, 2*time.Second, nil)
	r.ObserveRetry(1, 4*time.Second, nil)
	r.SetActiveSessions(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.orchestrations.WithLabelValues("final_answer", "router")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.orchestrations.WithLabelValues("final_answer", "planner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.orchestrations.WithLabelValues("rate_limited", "planner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.routerHits.WithLabelValues("get_weather")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.toolCalls.WithLabelValues("web_search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.toolCalls.WithLabelValues("web_search", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.retries))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.activeSessions))

	stats := r.Collector().GetSessionStats()
	assert.Equal(t, 3, stats.RequestCount)
	assert.Equal(t, 1, stats.RouterHits)
	assert.Equal(t, 2, stats.PlannerRuns)
	assert.Equal(t, 2, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 1, stats.RateLimited)
	assert.Equal(t, 2, stats.ToolCalls)
	assert.Equal(t, 1, stats.ToolFailures)
	assert.Equal(t, 2, stats.Retries)
	assert.Equal(t, 3, stats.ActiveSessions)
	assert.Equal(t, int64(3005), stats.TotalLatencyMs)
	assert.Equal(t, "retry 2 in 4s", stats.LastEvent)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.ObserveOrchestration("router", "final_answer", time.Millisecond)
		r.ObserveRouterHit("help")
		r.ObserveTool("x", nil, 0)
		r.ObserveRetry(0, 0, nil)
		r.SetActiveSessions(1)
	})
	assert.Nil(t, r.Collector())
	assert.Nil(t, r.Registry())
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveRouterHit("help")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `zira_router_hits_total{intent="help"} 1`)
}

func TestCollector_RecentEvents(t *testing.T) {
	c := NewCollector()
	c.maxEvents = 3

	for i := 0; i < 5; i++ {
		c.recordTool("t"+string(rune('a'+i)), nil)
	}

	events := c.GetRecentEvents(10)
	require.Len(t, events, 3)
	assert.Equal(t, "tool: tc", events[0].Detail)
	assert.Equal(t, "tool: te", events[2].Detail)

	last := c.GetRecentEvents(1)
	require.Len(t, last, 1)
	assert.Equal(t, "tool: te", last[0].Detail)
}

func TestCollector_StatsAreCopies(t *testing.T) {
	c := NewCollector()
	stats := c.GetSessionStats()
	stats.RequestCount = 99

	assert.Equal(t, 0, c.GetSessionStats().RequestCount)
}

func TestDashboard_Render(t *testing.T) {
	c := NewCollector()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.recordRequest("router", "final_answer", 10*time.Millisecond)
	c.recordRequest("planner", "internal_error", 990*time.Millisecond)
	c.recordTool("get_weather", nil)

	d := NewDashboard(c)
	d.SetWidth(120)
	d.now = func() time.Time { return fixed.Add(30 * time.Second) }

	full := d.Render()
	assert.Contains(t, full, "METRICS")
	assert.Contains(t, full, "0.50s avg")
	assert.Contains(t, full, "50%")
	assert.Contains(t, full, "tool: get_weather (30s)")

	compact := d.RenderCompact()
	assert.True(t, strings.HasPrefix(compact, "[Metrics] 2 req │ 1 routed │ 0.50s avg │ 1 tools │ 0 retries │ "))
	assert.True(t, strings.HasSuffix(compact, "●●●○○"))
}

func TestDashboard_Since(t *testing.T) {
	d := NewDashboard(NewCollector())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	assert.Equal(t, "never", d.since(time.Time{}))
	assert.Equal(t, "now", d.since(base.Add(-500*time.Millisecond)))
	assert.Equal(t, "12s", d.since(base.Add(-12*time.Second)))
	assert.Equal(t, "3m", d.since(base.Add(-3*time.Minute)))
}

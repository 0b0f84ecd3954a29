package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/cache"
)

func TestObserveOp(t *testing.T) {
	m := New()
	m.ObserveOp("swap", "ok", 3*time.Millisecond)
	m.ObserveOp("swap", "ok", time.Millisecond)
	m.ObserveOp("swap", "persistence", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("swap", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpsTotal.WithLabelValues("swap", "persistence")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.OpsTotal))
}

func TestPlaceholdersAndSessions(t *testing.T) {
	m := New()
	m.ObservePlaceholder("carousel")
	m.SessionsOpen(3)
	m.ObserveValidation(blocks.TypeHero)

	expected := `
		# HELP blockpage_block_placeholders_total Blocks rendered as a placeholder
		# TYPE blockpage_block_placeholders_total counter
		blockpage_block_placeholders_total{type="carousel"} 1
	`
	require.NoError(t, testutil.CollectAndCompare(m.PlaceholdersTotal, strings.NewReader(expected)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OpenSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("hero")))
}

func TestHandlerExposesCacheStats(t *testing.T) {
	m := New()
	c := cache.New(cache.Config{Enabled: true})
	m.WatchCache(c)
	c.Set("home", nil)
	c.Get("home")
	c.Get("about")
	m.ObserveRequest("GET", "/", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "blockpage_cache_entries 1")
	assert.Contains(t, out, "blockpage_cache_hits_total 1")
	assert.Contains(t, out, "blockpage_cache_misses_total 1")
	assert.Contains(t, out, `blockpage_requests_total{method="GET",route="/",status="200"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

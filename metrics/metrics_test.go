package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	r.TurnCompleted("proposal")
	r.TurnCompleted("proposal")
	r.TurnCompleted("deduce")
	r.Retry("question", "validity")
	r.Tokens(120, 30)
	r.Tokens(80, 10)
	r.GameFinished("Submitted", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.turns.WithLabelValues("proposal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.turns.WithLabelValues("deduce")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retries.WithLabelValues("question", "validity")))
	assert.Equal(t, 200.0, testutil.ToFloat64(r.tokens.WithLabelValues("input")))
	assert.Equal(t, 40.0, testutil.ToFloat64(r.tokens.WithLabelValues("output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.gamesFinished.WithLabelValues("Submitted", "true")))
}

func TestRecorder_ProviderHistogram(t *testing.T) {
	r := New()
	r.ProviderCall("question", 0.5)
	r.ProviderCall("question", 3)

	assert.Equal(t, 1, testutil.CollectAndCount(r.providerCalls))
	expected := `
# HELP turnbench_provider_seconds Completion provider latency by stage.
# TYPE turnbench_provider_seconds histogram
turnbench_provider_seconds_bucket{stage="question",le="0.25"} 0
turnbench_provider_seconds_bucket{stage="question",le="0.5"} 1
turnbench_provider_seconds_bucket{stage="question",le="1"} 1
turnbench_provider_seconds_bucket{stage="question",le="2.5"} 1
turnbench_provider_seconds_bucket{stage="question",le="5"} 2
turnbench_provider_seconds_bucket{stage="question",le="10"} 2
turnbench_provider_seconds_bucket{stage="question",le="30"} 2
turnbench_provider_seconds_bucket{stage="question",le="60"} 2
turnbench_provider_seconds_bucket{stage="question",le="120"} 2
turnbench_provider_seconds_bucket{stage="question",le="+Inf"} 2
turnbench_provider_seconds_sum{stage="question"} 3.5
turnbench_provider_seconds_count{stage="question"} 2
`
	require.NoError(t, testutil.CollectAndCompare(r.providerCalls, strings.NewReader(expected)))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.TurnCompleted("question")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `turnbench_turns_total{stage="question"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

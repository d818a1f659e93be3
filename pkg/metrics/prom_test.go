package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestObserveQuery(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues(OutcomeAnswered))
	beforeErr := testutil.ToFloat64(QueriesTotal.WithLabelValues(OutcomeError))

	ObserveQuery(OutcomeAnswered, time.Now(), 3)
	ObserveQuery(OutcomeError, time.Now(), 0)

	assert.Equal(t, before+1, testutil.ToFloat64(QueriesTotal.WithLabelValues(OutcomeAnswered)))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(QueriesTotal.WithLabelValues(OutcomeError)))
}

func TestStartPrometheusServerShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	StartPrometheusServer(ctx, &wg, &PromServerOpts{
		Logger: zap.NewNop(),
		Addr:   "127.0.0.1:0",
	})
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not shut down")
	}
}

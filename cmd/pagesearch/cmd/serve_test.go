package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagesearch/internal/metrics"
)

func TestServeCmd_Flags(t *testing.T) {
	root := NewRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("metrics-addr"))
}

func TestServeMetrics_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- serveMetrics(ctx, "127.0.0.1:0", metrics.New())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestServeMetrics_BadAddress(t *testing.T) {
	err := serveMetrics(context.Background(), "256.0.0.1:bad", metrics.New())

	assert.Error(t, err)
}

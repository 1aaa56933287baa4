package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	key string
	seq int
}

func TestDispatchPreservesPerKeyOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]int{}

	d := New(4, 8, func(_ context.Context, it item) {
		mu.Lock()
		defer mu.Unlock()
		seen[it.key] = append(seen[it.key], it.seq)
	})
	d.Start(context.Background())

	keys := []string{"PH-BUL-00991", "PH-BUL-01136", "PH-NCR-01309", "PH-PAM-00909", "PH-PAM-00972"}
	for seq := 0; seq < 200; seq++ {
		for _, key := range keys {
			require.True(t, d.Dispatch(key, item{key: key, seq: seq}))
		}
	}
	d.Stop()

	require.Len(t, seen, len(keys))
	for _, key := range keys {
		got := seen[key]
		require.Len(t, got, 200, key)
		for i, seq := range got {
			assert.Equal(t, i, seq, fmt.Sprintf("key %s out of order", key))
		}
	}
}

func TestDispatchAfterStop(t *testing.T) {
	d := New(2, 1, func(context.Context, int) {})
	d.Start(context.Background())
	d.Stop()
	d.Stop()

	assert.False(t, d.Dispatch("S1", 1))
}

func TestWorkerIsStable(t *testing.T) {
	d := New(8, 1, func(context.Context, int) {})
	assert.Equal(t, 8, d.Workers())
	assert.Equal(t, d.worker("PH-BUL-00991"), d.worker("PH-BUL-00991"))
}

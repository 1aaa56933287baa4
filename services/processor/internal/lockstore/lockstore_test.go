package lockstore

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func exerciseStore(t *testing.T, s store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "alert.S1.refill")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "alert.S1.refill", []byte(`{"id":"1"}`)))

	value, found, err := s.Get(ctx, "alert.S1.refill")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id":"1"}`, string(value))

	require.NoError(t, s.Delete(ctx, "alert.S1.refill"))
	require.NoError(t, s.Delete(ctx, "alert.S1.refill"))

	_, found, err = s.Get(ctx, "alert.S1.refill")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	assert.Zero(t, s.Len())
}

func startJetStream(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go srv.Start()
	t.Cleanup(srv.Shutdown)

	require.True(t, srv.ReadyForConnections(10*time.Second), "nats server not ready")
	require.Eventually(t, srv.JetStreamEnabled, 5*time.Second, 50*time.Millisecond)
	return srv
}

func TestNatsStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded JetStream test in short mode")
	}

	srv := startJetStream(t)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewNatsStore(ctx, nc, DefaultBucket, 0)
	require.NoError(t, err)
	exerciseStore(t, s)

	// reopening the same bucket keeps its contents
	require.NoError(t, s.Put(ctx, "alert.S2.pilferage", []byte("{}")))
	again, err := NewNatsStore(ctx, nc, DefaultBucket, 0)
	require.NoError(t, err)
	_, found, err := again.Get(ctx, "alert.S2.pilferage")
	require.NoError(t, err)
	assert.True(t, found)
}

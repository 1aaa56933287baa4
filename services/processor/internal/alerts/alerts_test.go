package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fuelguard/fuelguard/pkg/logger"
	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/pkg/telemetry"
	"github.com/fuelguard/fuelguard/services/processor/internal/classify"
	"github.com/fuelguard/fuelguard/services/processor/internal/lockstore"
	"github.com/fuelguard/fuelguard/services/processor/internal/pipeline"
)

func reading(site string, ts int64, total float64, cat classify.Category) pipeline.Reading {
	return pipeline.Reading{
		RawSample: telemetry.RawSample{SiteID: site, HWCode: "env-1", Gateway: "gw", PowerState: "DG", UpdateTime: ts},
		Total:     total,
		Category:  cat,
		Severity:  classify.SeverityOf(cat),
	}
}

func newTestManager(t *testing.T) (*Manager, *MockSink, *lockstore.MemoryStore) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	locks := lockstore.NewMemoryStore()

	m := NewManager(locks, sink, logger.NewTestLogger())
	m.now = func() time.Time { return time.Unix(5000, 0).UTC() }
	return m, sink, locks
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "alert.PH-BUL-00991.pilferage", LockKey("PH-BUL-00991", classify.CategoryPilferage))
	assert.Equal(t, "alert.site_201_2Ea.refill", LockKey("site 1.a", classify.CategoryRefill))
	assert.Equal(t, "alert.A_2EB.refill", LockKey("A.B", classify.CategoryRefill))
	assert.Equal(t, "alert.A_5FB.refill", LockKey("A_B", classify.CategoryRefill))
}

func TestLockKeyDistinctSites(t *testing.T) {
	sites := []string{"A.B", "A_B", "A B", "A_2EB", "A-B", "AB", "A/B", "Ä"}
	seen := map[string]string{}
	for _, site := range sites {
		key := LockKey(site, classify.CategoryPilferage)
		if other, ok := seen[key]; ok {
			t.Fatalf("sites %q and %q share key %q", other, site, key)
		}
		seen[key] = site
	}
}

func TestOpenCloseReopen(t *testing.T) {
	m, sink, locks := newTestManager(t)
	ctx := context.Background()
	key := LockKey("S1", classify.CategoryPilferage)

	var inserted []storage.AlertEvent
	var closed []storage.AlertEvent
	sink.EXPECT().InsertAlertEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e storage.AlertEvent) error {
			inserted = append(inserted, e)
			return nil
		}).Times(2)
	sink.EXPECT().CloseAlertEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e storage.AlertEvent) error {
			closed = append(closed, e)
			return nil
		}).Times(1)
	sink.EXPECT().UpsertAlertStatus(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	transitions, err := m.Process(ctx, []pipeline.Reading{
		reading("S1", 100, 900, classify.CategoryNormal),
		reading("S1", 160, 700, classify.CategoryPilferage),
		reading("S1", 220, 650, classify.CategoryPilferage),
	})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, Opened, transitions[0].Kind)

	require.Len(t, inserted, 1)
	assert.Equal(t, time.Unix(160, 0).UTC(), inserted[0].OpenTime)
	assert.Equal(t, 700.0, inserted[0].StartLevel)
	assert.Nil(t, inserted[0].CloseTime)
	assert.Equal(t, "alert", inserted[0].Type)
	assert.Equal(t, "mqtt", inserted[0].Protocol)

	payload, found, err := locks.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	var marker Record
	require.NoError(t, json.Unmarshal(payload, &marker))
	assert.Equal(t, inserted[0].ID, marker.ID)

	transitions, err = m.Process(ctx, []pipeline.Reading{
		reading("S1", 280, 640, classify.CategoryNormal),
	})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, Closed, transitions[0].Kind)

	require.Len(t, closed, 1)
	assert.Equal(t, inserted[0].OpenTime, closed[0].OpenTime)
	require.NotNil(t, closed[0].CloseTime)
	assert.Equal(t, time.Unix(280, 0).UTC(), *closed[0].CloseTime)
	require.NotNil(t, closed[0].EndLevel)
	assert.Equal(t, 640.0, *closed[0].EndLevel)

	_, found, err = locks.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "lock entry removed on close")

	transitions, err = m.Process(ctx, []pipeline.Reading{
		reading("S1", 340, 500, classify.CategoryPilferage),
	})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, Opened, transitions[0].Kind)

	require.Len(t, inserted, 2)
	assert.NotEqual(t, inserted[0].ID, inserted[1].ID)
	assert.Equal(t, time.Unix(340, 0).UTC(), inserted[1].OpenTime)
}

func TestNormalClosesEveryOpenCategory(t *testing.T) {
	m, sink, locks := newTestManager(t)
	ctx := context.Background()

	sink.EXPECT().InsertAlertEvent(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	sink.EXPECT().CloseAlertEvent(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	var statuses []storage.AlertStatus
	sink.EXPECT().UpsertAlertStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s storage.AlertStatus) error {
			statuses = append(statuses, s)
			return nil
		}).Times(2)

	transitions, err := m.Process(ctx, []pipeline.Reading{
		reading("S1", 1, 100, classify.CategoryRefill),
		reading("S1", 2, 3500, classify.CategorySensorFailure),
		reading("S1", 3, 100, classify.CategoryNormal),
	})
	require.NoError(t, err)
	require.Len(t, transitions, 4)
	assert.Zero(t, locks.Len())

	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.False(t, s.Active)
	}
}

func TestStatusProjectionActive(t *testing.T) {
	m, sink, _ := newTestManager(t)

	sink.EXPECT().InsertAlertEvent(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	var statuses []storage.AlertStatus
	sink.EXPECT().UpsertAlertStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s storage.AlertStatus) error {
			statuses = append(statuses, s)
			return nil
		}).Times(1)

	_, err := m.Process(context.Background(), []pipeline.Reading{
		reading("S1", 1, 100, classify.CategoryRefill),
		reading("S1", 2, 120, classify.CategoryRefill),
	})
	require.NoError(t, err)

	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Active)
	assert.Equal(t, "refill", statuses[0].Category)
	assert.Equal(t, time.Unix(2, 0).UTC(), statuses[0].UpdateTime)
}

func TestFailedInsertStoresNoMarker(t *testing.T) {
	m, sink, locks := newTestManager(t)
	ctx := context.Background()

	gomock.InOrder(
		sink.EXPECT().InsertAlertEvent(gomock.Any(), gomock.Any()).Return(&storage.SinkWriteError{Table: "fuel_alert_events", Op: "insert", Err: errors.New("down")}),
		sink.EXPECT().InsertAlertEvent(gomock.Any(), gomock.Any()).Return(nil),
	)
	sink.EXPECT().UpsertAlertStatus(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	transitions, err := m.Process(ctx, []pipeline.Reading{
		reading("S1", 1, 100, classify.CategoryPilferage),
	})
	require.NoError(t, err)
	assert.Empty(t, transitions)
	assert.Zero(t, locks.Len())

	transitions, err = m.Process(ctx, []pipeline.Reading{
		reading("S1", 2, 90, classify.CategoryPilferage),
	})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, 1, locks.Len())
}

func TestMarkersLoadedFromLockStore(t *testing.T) {
	m, sink, locks := newTestManager(t)
	ctx := context.Background()

	rec := Record{ID: "existing", SiteID: "S9", Category: classify.CategoryRefill, OpenTime: time.Unix(10, 0).UTC(), StartLevel: 50}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, locks.Put(ctx, LockKey("S9", classify.CategoryRefill), payload))

	sink.EXPECT().CloseAlertEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e storage.AlertEvent) error {
			assert.Equal(t, "existing", e.ID)
			assert.Equal(t, rec.OpenTime, e.OpenTime)
			return nil
		}).Times(1)

	transitions, err := m.Process(ctx, []pipeline.Reading{reading("S9", 20, 60, classify.CategoryNormal)})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, Closed, transitions[0].Kind)
}

type failingLocks struct{ lockstore.MemoryStore }

func (failingLocks) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("bucket unavailable")
}

func TestLockStoreFailureAbortsBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewManager(&failingLocks{}, NewMockSink(ctrl), logger.NewTestLogger())

	_, err := m.Process(context.Background(), []pipeline.Reading{reading("S1", 1, 1, classify.CategoryRefill)})
	require.Error(t, err)
}

func TestExpiredMarkerOpensNewAlert(t *testing.T) {
	m, sink, locks := newTestManager(t)
	ctx := context.Background()

	var inserted []storage.AlertEvent
	sink.EXPECT().InsertAlertEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e storage.AlertEvent) error {
			inserted = append(inserted, e)
			return nil
		}).Times(2)
	sink.EXPECT().UpsertAlertStatus(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	transitions, err := m.Process(ctx, []pipeline.Reading{reading("S1", 100, 100, classify.CategoryRefill)})
	require.NoError(t, err)
	require.Len(t, transitions, 1)

	// TTL expiry or another processor instance removed the marker
	require.NoError(t, locks.Delete(ctx, LockKey("S1", classify.CategoryRefill)))

	transitions, err = m.Process(ctx, []pipeline.Reading{reading("S1", 200, 300, classify.CategoryRefill)})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, Opened, transitions[0].Kind)

	require.Len(t, inserted, 2)
	assert.NotEqual(t, inserted[0].ID, inserted[1].ID)
	assert.Equal(t, time.Unix(200, 0).UTC(), inserted[1].OpenTime)
	assert.Equal(t, 1, locks.Len())
}

func TestNormalAfterExpiredMarkerClosesNothing(t *testing.T) {
	m, sink, locks := newTestManager(t)
	ctx := context.Background()

	sink.EXPECT().InsertAlertEvent(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	sink.EXPECT().CloseAlertEvent(gomock.Any(), gomock.Any()).Times(0)
	sink.EXPECT().UpsertAlertStatus(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	_, err := m.Process(ctx, []pipeline.Reading{reading("S1", 100, 100, classify.CategoryPilferage)})
	require.NoError(t, err)
	require.NoError(t, locks.Delete(ctx, LockKey("S1", classify.CategoryPilferage)))

	transitions, err := m.Process(ctx, []pipeline.Reading{reading("S1", 200, 100, classify.CategoryNormal)})
	require.NoError(t, err)
	assert.Empty(t, transitions)
}

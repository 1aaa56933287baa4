package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelguard/fuelguard/pkg/logger"
	"github.com/fuelguard/fuelguard/pkg/telemetry"
	"github.com/fuelguard/fuelguard/services/collector/internal/config"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func testConfig(capacity int) *config.Config {
	cfg := &config.Config{Buffer: config.BufferConfig{Capacity: capacity}, Workers: 2}
	cfg.Service.HTTPAddr = ":0"
	cfg.NATS.SubjectBatches = "fuel.batches"
	cfg.Buffer.PowerSourceHardware = telemetry.DefaultPowerSourceHardware
	cfg.Buffer.FuelHardware = telemetry.DefaultFuelHardware
	return cfg
}

func fuelReport(site string, ts int64, level float64) *telemetry.Report {
	payload := fmt.Sprintf(`[{"bn":"%s:env-1--gw1","n":"fuellevel1","v":%g,"ut":%d},{"n":"fuellevel2","v":0},{"n":"fuellevel3","v":0}]`,
		site, level, ts)
	r, err := telemetry.ParseReport([]byte(payload))
	if err != nil {
		panic(err)
	}
	return r
}

func powerReport(site, state string) *telemetry.Report {
	r, err := telemetry.ParseReport([]byte(fmt.Sprintf(`[{"bn":"%s:rectifier-1","n":"powerstate","vs":"%s"}]`, site, state)))
	if err != nil {
		panic(err)
	}
	return r
}

func TestExactlyOneBatchAtCapacity(t *testing.T) {
	pub := &fakePublisher{}
	c := newCollector(testConfig(4), pub, logger.NewTestLogger())

	c.HandleReport(powerReport("S1", "DG"))
	for i := int64(0); i < 4; i++ {
		c.HandleReport(fuelReport("S1", 1000+i, 100-float64(i)))
	}

	require.Equal(t, 1, pub.count())
	assert.Equal(t, "fuel.batches", pub.subjects[0])

	var batch []telemetry.RawSample
	require.NoError(t, json.Unmarshal(pub.payloads[0], &batch))
	require.Len(t, batch, 4)
	assert.Equal(t, "DG", batch[0].PowerState)
	assert.Equal(t, "gw1", batch[0].Gateway)
	assert.Equal(t, int64(1003), batch[3].UpdateTime)

	assert.Zero(t, c.store.GetOrCreate("S1").Len())
}

func TestFuelBeforePowerUsesSentinel(t *testing.T) {
	pub := &fakePublisher{}
	c := newCollector(testConfig(1), pub, logger.NewTestLogger())

	c.HandleReport(fuelReport("S2", 1, 10))

	require.Equal(t, 1, pub.count())
	var batch []telemetry.RawSample
	require.NoError(t, json.Unmarshal(pub.payloads[0], &batch))
	assert.Equal(t, telemetry.PowerStateUnknown, batch[0].PowerState)
}

func TestSitesBufferIndependently(t *testing.T) {
	pub := &fakePublisher{}
	c := newCollector(testConfig(3), pub, logger.NewTestLogger())

	c.HandleReport(fuelReport("A", 1, 1))
	c.HandleReport(fuelReport("B", 1, 1))
	c.HandleReport(fuelReport("A", 2, 1))
	c.HandleReport(fuelReport("B", 2, 1))

	assert.Zero(t, pub.count())
	assert.Equal(t, 2, c.store.GetOrCreate("A").Len())
	assert.Equal(t, 2, c.store.GetOrCreate("B").Len())
}

func TestIngestDispatchesAndDropsBadPayloads(t *testing.T) {
	pub := &fakePublisher{}
	c := newCollector(testConfig(2), pub, logger.NewTestLogger())
	c.dispatcher.Start(context.Background())

	c.Ingest([]byte("not json at all"))
	c.Ingest([]byte(`[{"n":"fuellevel1","v":1}]`))
	c.Ingest([]byte(`[{"bn":"S3:aircon-1","n":"temp","v":21}]`))
	c.Ingest([]byte(`[{"bn":"S3:env-1","n":"fuellevel1","v":5,"ut":1}]`))
	c.Ingest([]byte(`[{"bn":"S3:env-1","n":"fuellevel1","v":4,"ut":2}]`))

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)

	c.dispatcher.Stop()
	assert.Equal(t, []string{"S3"}, siteIDs(c))
}

func siteIDs(c *Collector) []string {
	var ids []string
	for _, s := range c.Buffers() {
		ids = append(ids, s.SiteID)
	}
	return ids
}

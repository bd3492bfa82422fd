package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hand_rehab/internal/imu"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
	"github.com/relabs-tech/hand_rehab/internal/source"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPrintUpdate(t *testing.T) {
	var out bytes.Buffer

	u, err := imu.ParseUpdate("IMU/y", []byte("12.5"))
	require.NoError(t, err)
	printUpdate(&out, u)

	u, err = imu.ParseUpdate("IMU", []byte(`{"sessionID":2,"mode":1,"y":-3}`))
	require.NoError(t, err)
	printUpdate(&out, u)

	assert.Equal(t, "[IMU   ] y=12.5\n[IMU   ] sessionID=2 mode=1 y=-3 z=-\n", out.String())
}

func TestConsole_PrintsTraffic(t *testing.T) {
	cfg := testConfig(t)
	cfg.MQTTBroker = startBroker(t, 18843)
	log, _ := logtest.NewNullLogger()

	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runConsole(ctx, cfg, &out, log) }()

	client, err := source.Connect(source.ClientOptions{Broker: cfg.MQTTBroker, ClientID: "device"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { source.Disconnect(client) })

	// keep publishing until the console has subscribed and printed both kinds
	ts := time.Date(2026, 4, 1, 8, 30, 0, 0, time.Local)
	require.Eventually(t, func() bool {
		_ = source.PublishJSON(client, cfg.TopicIMU+"/mode", false, 2)
		_ = source.NewPublisher(client, cfg.TopicSamples).Append(samplelog.Sample{
			SessionID: 1, Mode: 2, RepNumber: 3, AngleValue: 4.5, Timestamp: ts,
		})
		s := out.String()
		return strings.Contains(s, "[IMU   ] mode=2") &&
			strings.Contains(s, "[SAMPLE] session=1 mode=2 rep=  3 angle=   4.500  2026-04-01 08:30:00.000")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestConsole_WithoutSampleTopic(t *testing.T) {
	cfg := testConfig(t)
	cfg.MQTTBroker = startBroker(t, 18844)
	cfg.TopicSamples = ""
	log, _ := logtest.NewNullLogger()

	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runConsole(ctx, cfg, &out, log) }()

	client, err := source.Connect(source.ClientOptions{Broker: cfg.MQTTBroker, ClientID: "device"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { source.Disconnect(client) })

	require.Eventually(t, func() bool {
		_ = source.PublishJSON(client, cfg.TopicIMU+"/y", false, 7.5)
		return strings.Contains(out.String(), "[IMU   ] y=7.5")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("console did not stop after cancel")
	}
}

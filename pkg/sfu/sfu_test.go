package sfu

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harmony-chat/harmony-server/pkg/config"
	"github.com/harmony-chat/harmony-server/pkg/rtc/types"
)

func testRTCConfig() *config.RTCConfig {
	return &config.RTCConfig{
		MinPort:     50000,
		MaxPort:     50099,
		AnnouncedIP: "127.0.0.1",
	}
}

func TestWorkerCreatesRouters(t *testing.T) {
	w, err := NewWorker(testRTCConfig())
	require.NoError(t, err)
	defer w.Close()

	r, err := w.CreateRouter(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, w.RouterCount())

	caps := r.RTPCapabilities()
	require.Len(t, caps.Codecs, 1)
	require.Equal(t, "audio/opus", caps.Codecs[0].MimeType)
	require.EqualValues(t, 48000, caps.Codecs[0].ClockRate)
	require.EqualValues(t, 2, caps.Codecs[0].Channels)
	require.Contains(t, caps.Codecs[0].Parameters, "useinbandfec=1")

	r.Close()
	require.Equal(t, 0, w.RouterCount())

	_, err = w.CreateRouter(context.Background())
	require.NoError(t, err)

	w.Close()
	_, err = w.CreateRouter(context.Background())
	require.ErrorIs(t, err, ErrWorkerClosed)
}

func TestPoolPicksLeastLoaded(t *testing.T) {
	conf := &config.Config{
		RTC: config.RTCConfig{
			MinPort:     50100,
			MaxPort:     50199,
			WorkerCount: 2,
		},
	}
	pool, err := NewPool(conf)
	require.NoError(t, err)
	defer pool.Close()

	require.Len(t, pool.workers, 2)
	for i := 0; i < 4; i++ {
		_, err = pool.CreateRouter(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 2, pool.workers[0].RouterCount())
	require.Equal(t, 2, pool.workers[1].RouterCount())
}

func TestCanReceiveOpus(t *testing.T) {
	opus := types.RTPCapabilities{Codecs: []types.RTPCodecCapability{
		{MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
	}}
	require.True(t, canReceiveOpus(opus))

	mixedCase := types.RTPCapabilities{Codecs: []types.RTPCodecCapability{
		{MimeType: "Audio/Opus", ClockRate: 48000},
	}}
	require.True(t, canReceiveOpus(mixedCase))

	noOpus := types.RTPCapabilities{Codecs: []types.RTPCodecCapability{
		{MimeType: "audio/PCMU", ClockRate: 8000},
	}}
	require.False(t, canReceiveOpus(noOpus))

	wrongRate := types.RTPCapabilities{Codecs: []types.RTPCodecCapability{
		{MimeType: "audio/opus", ClockRate: 16000},
	}}
	require.False(t, canReceiveOpus(wrongRate))

	require.False(t, canReceiveOpus(types.RTPCapabilities{}))
}

func TestRouterCanConsume(t *testing.T) {
	w, err := NewWorker(testRTCConfig())
	require.NoError(t, err)
	defer w.Close()

	r, err := w.CreateRouter(context.Background())
	require.NoError(t, err)

	caps := r.RTPCapabilities()
	require.False(t, r.CanConsume("PR_missing", caps), "unknown producer must not be consumable")
}

func TestTransportLifecycle(t *testing.T) {
	w, err := NewWorker(testRTCConfig())
	require.NoError(t, err)
	defer w.Close()

	router, err := w.CreateRouter(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	transport, err := router.CreateTransport(ctx)
	require.NoError(t, err)

	info := transport.Info()
	require.Equal(t, transport.ID(), info.ID)
	require.NotEmpty(t, info.ICEParameters.UsernameFragment)
	require.NotEmpty(t, info.ICEParameters.Password)
	require.NotEmpty(t, info.ICECandidates, "gathering must yield host candidates")
	require.NotEmpty(t, info.DTLSParameters.Fingerprints)

	var lock sync.Mutex
	var lastState types.TransportState
	transport.OnStateChange(func(state types.TransportState) {
		lock.Lock()
		lastState = state
		lock.Unlock()
	})

	transport.Close()
	lock.Lock()
	require.Equal(t, types.TransportStateClosed, lastState)
	lock.Unlock()

	// close is idempotent
	transport.Close()

	_, err = transport.Produce(ctx, types.RTPParameters{
		Codecs:    []types.RTPCodecParameters{{MimeType: "audio/opus", PayloadType: 111, ClockRate: 48000}},
		Encodings: []types.RTPEncodingParameters{{SSRC: 1234}},
	})
	require.ErrorIs(t, err, ErrTransportClosed)
}

func TestProduceRejectsNonOpus(t *testing.T) {
	w, err := NewWorker(testRTCConfig())
	require.NoError(t, err)
	defer w.Close()

	router, err := w.CreateRouter(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	transport, err := router.CreateTransport(ctx)
	require.NoError(t, err)
	defer transport.Close()

	_, err = transport.Produce(ctx, types.RTPParameters{
		Codecs:    []types.RTPCodecParameters{{MimeType: "audio/PCMU", PayloadType: 0, ClockRate: 8000}},
		Encodings: []types.RTPEncodingParameters{{SSRC: 1234}},
	})
	require.ErrorIs(t, err, ErrNoAudioCodec)
}

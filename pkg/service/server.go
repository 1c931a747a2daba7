package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"github.com/rs/cors"
	"github.com/urfave/negroni/v3"
	"golang.org/x/sync/errgroup"

	"github.com/harmony-chat/harmony-server/pkg/config"
	"github.com/harmony-chat/harmony-server/pkg/directory"
	"github.com/harmony-chat/harmony-server/pkg/events"
	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/presence"
	"github.com/harmony-chat/harmony-server/pkg/rtc"
	"github.com/harmony-chat/harmony-server/pkg/sfu"
	"github.com/harmony-chat/harmony-server/pkg/signal"
	"github.com/harmony-chat/harmony-server/pkg/store"
	"github.com/harmony-chat/harmony-server/pkg/telemetry/prometheus"
	"github.com/harmony-chat/harmony-server/version"
)

const shutdownTimeout = 5 * time.Second

// HarmonyServer assembles the store, the media worker pool, the voice
// orchestrator, and the HTTP/websocket surfaces into one process.
type HarmonyServer struct {
	config     *config.Config
	store      store.Store
	bus        *events.Bus
	pool       *sfu.Pool
	manager    *rtc.VoiceManager
	hub        *Hub
	httpServer *http.Server

	running  atomic.Bool
	doneChan chan struct{}
}

func NewHarmonyServer(conf *config.Config) (*HarmonyServer, error) {
	st, err := store.New(&conf.Store)
	if err != nil {
		return nil, err
	}

	pool, err := sfu.NewPool(conf)
	if err != nil {
		st.Close()
		return nil, err
	}

	bus := events.NewBus()
	dir := directory.NewDirectory(st, bus)
	manager := rtc.NewVoiceManager(pool, time.Duration(conf.SignalTimeout)*time.Second)
	hub := NewHub()
	registry := presence.NewRegistry()
	index := presence.NewChannelIndex()

	// directory mutations reach every client through the hub; event kinds
	// double as wire event names
	bus.Subscribe(func(ev events.Event) {
		hub.Broadcast(string(ev.Kind), ev.Payload)
	})

	signalService := NewSignalService(conf, manager, dir, registry, index, hub)
	apiService := NewAPIService(dir)

	mux := http.NewServeMux()
	mux.Handle("/ws", signalService)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handleHealthz)
	apiService.Register(mux)

	middleware := negroni.New(negroni.NewRecovery())
	middleware.Use(cors.New(cors.Options{
		AllowedOrigins:   conf.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))
	middleware.UseHandler(mux)

	s := &HarmonyServer{
		config:  conf,
		store:   st,
		bus:     bus,
		pool:    pool,
		manager: manager,
		hub:     hub,
		httpServer: &http.Server{
			Addr:    conf.HTTPAddr(),
			Handler: middleware,
		},
	}

	// a dead media worker means the process cannot serve voice; exit and
	// let the supervisor restart it
	pool.OnDied(func(err error) {
		logger.Fatalw("media worker died, shutting down", err)
	})

	return s, nil
}

func (s *HarmonyServer) IsRunning() bool {
	return s.running.Load()
}

// Start serves until Stop is called, then drains connections and media.
func (s *HarmonyServer) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("already running")
	}
	s.doneChan = make(chan struct{}, 1)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.running.Store(false)
		return errors.Wrap(err, "could not listen")
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.Infow("starting harmony server",
			"address", s.httpServer.Addr, "version", version.Version)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-s.doneChan
	s.running.Store(false)

	s.hub.CloseAll()
	s.manager.CloseAll()
	s.pool.Close()
	s.bus.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = s.httpServer.Shutdown(ctx); err != nil {
		logger.Warnw("could not shut down cleanly", err)
	}
	if err = s.store.Close(); err != nil {
		logger.Warnw("could not close store", err)
	}

	return group.Wait()
}

func (s *HarmonyServer) Stop() {
	select {
	case s.doneChan <- struct{}{}:
	default:
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"version":     version.Version,
		"connections": prometheus.CurrentConnections(),
		"rooms":       prometheus.CurrentRooms(),
	})
}

var _ signal.Sink = (*Connection)(nil)

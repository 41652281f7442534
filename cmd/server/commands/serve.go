package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CitroenGames/garden-framework-sub000/am"
	"github.com/CitroenGames/garden-framework-sub000/internal/assets"
	"github.com/CitroenGames/garden-framework-sub000/internal/demoworld"
	"github.com/CitroenGames/garden-framework-sub000/internal/jobs"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/proto"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/server"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/transport"
	"github.com/CitroenGames/garden-framework-sub000/internal/render"
	"github.com/CitroenGames/garden-framework-sub000/logger"
)

// ServeCmd starts the job scheduler, asset pipeline, and replication
// server and serves WebSocket connections until interrupted.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Run the replication server",
	RunE:    runServe,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return err
	}

	log := logger.Logger.Named("server")

	if cfg.Server.LogTheme != "" {
		logger.SetTheme(cfg.Server.LogTheme)
	}

	if path := am.ProjectConfigPath(); path != "" {
		cfgWatcher, err := am.NewConfigWatcher(path)
		if err != nil {
			log.Warnw("config watcher disabled", "error", err)
		} else {
			cfgWatcher.OnReload(func(reloaded *am.Config) error {
				if reloaded.Server.LogTheme != "" {
					logger.SetTheme(reloaded.Server.LogTheme)
					log.Infow("log theme reloaded", "theme", reloaded.Server.LogTheme)
				}
				return nil
			})
			cfgWatcher.Start()
			am.SetGlobalWatcher(cfgWatcher)
			defer cfgWatcher.Stop()
			log.Infow("watching config for changes", "path", path)
		}
	}

	sched := jobs.New(jobs.Config{
		Workers:             cfg.Jobs.Workers,
		WatchMemoryPressure: cfg.Jobs.WatchMemoryPressure,
	}, log)
	defer sched.Shutdown()

	device := render.NewHeadless()
	assetMgr := assets.NewManager(sched, device, log)
	log.Infow("asset pipeline ready", "cached", assetMgr.CachedCount(), "loading", assetMgr.LoadingCount())

	if cfg.Assets.WatchForEdits && len(cfg.Assets.SearchRoots) > 0 {
		hotReload, err := assetMgr.StartHotReload(cfg.Assets.SearchRoots)
		if err != nil {
			log.Warnw("asset hot reload disabled", "error", err)
		} else {
			defer hotReload.Close()
			log.Infow("asset hot reload enabled", "roots", cfg.Assets.SearchRoots)
		}
	}

	world := demoworld.NewServerWorld()
	srv := server.NewServer(server.Config{
		SimTickHz:       cfg.Server.SimTickHz,
		SnapshotDivisor: cfg.Server.SnapshotDivisor,
		ShutdownDrainMS: cfg.Server.ShutdownDrainMS,
	}, world, log)

	go srv.Run()

	stopMainThreadPump := make(chan struct{})
	go pumpMainThread(sched, stopMainThreadPump)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebsocket(srv, log, w, r)
	})

	httpSrv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		log.Infow("listening", "port", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server failed", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	close(stopMainThreadPump)
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func handleWebsocket(srv *server.Server, log *zap.SugaredLogger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorw("websocket upgrade failed", "error", err)
		return
	}

	ch := transport.NewChannel(transport.NewWSConn(conn), nil)
	sess, err := srv.Accept(ch)
	if err != nil {
		log.Errorw("handshake failed", "error", err)
		ch.Close()
		return
	}

	for {
		data, err := ch.Receive()
		if err != nil {
			srv.Disconnect(sess, "connection lost")
			return
		}
		if typ, ok := proto.PeekType(data); ok && typ == proto.Disconnect {
			srv.HandleMessage(sess, data)
			return
		}
		srv.HandleMessage(sess, data)
	}
}

// pumpMainThread drains GPU-affinity jobs (asset uploads) at a fixed
// cadence, standing in for the host engine's per-frame main-thread drain.
func pumpMainThread(sched *jobs.Scheduler, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sched.DrainMainThread(0)
		}
	}
}

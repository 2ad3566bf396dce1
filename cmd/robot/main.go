// Command robot runs one robot process: it joins the ring, manages its
// own orders, scoops when handed a token it can serve, and — while
// elected — runs the Leader task. It exposes an operator HTTP surface
// (health/ready/metrics) and a gRPC admin surface (status, forced
// elections) alongside its ring and leader-registration listeners.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"ringscoop/internal/backupstore"
	"ringscoop/internal/config"
	"ringscoop/internal/httpops"
	"ringscoop/internal/logging"
	"ringscoop/internal/opsfeed"
	"ringscoop/internal/orderpreparer"
	"ringscoop/internal/ringaddr"
	"ringscoop/internal/ringctl"
	"ringscoop/internal/ringio"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: robot <robot-id>")
		os.Exit(2)
	}
	robotID, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid robot id %q: %v\n", os.Args[1], err)
		os.Exit(2)
	}

	cfg, err := config.Load(robotID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backupDir := cfg.BackupPath
	if backupDir == "" {
		backupDir = filepath.Join("data", fmt.Sprintf("robot-%d", robotID))
	}
	store, err := backupstore.New(backupDir, robotID, cfg.BackupInterval, cfg.AdminToken, log)
	if err != nil {
		log.Fatal("failed to open backup store", logging.Error(err))
	}
	defer store.Close()

	retainer := backupstore.NewRetainer(backupDir, backupstore.RetentionPolicy{
		MaxSegments: 20,
		MaxAge:      30 * 24 * time.Hour,
	}, log)
	go retainer.Run(ctx, time.Hour)

	dashboard := opsfeed.NewHub(32, log)

	preparer := orderpreparer.New(nil, cfg.ScoopTimeFactor)
	node := ringio.NewNode(ringio.Config{
		SelfID:    cfg.RobotID,
		MaxRobots: cfg.MaxRobots,
		Log:       log,
		Preparer:  preparer,
		Store:     store,
		Events:    dashboard,
	}, cfg.ScoopTimeFactor)

	if err := node.Start(); err != nil {
		log.Fatal("failed to start ring connection handler", logging.Error(err))
	}
	defer node.Stop()

	opsAddr := ringaddr.Ops(robotID)
	opsSrv := httpops.New(node, 60, time.Minute, log)
	opsSrv.Handle("/ws", dashboard)
	httpSrv := &http.Server{Addr: opsAddr, Handler: opsSrv}
	go func() {
		log.Info("operator http listening", logging.String("address", ringaddr.ListenerURL(opsAddr, false)))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("operator http server exited", logging.Error(err))
		}
	}()

	ringCtlAddr := ringaddr.RingCtl(robotID)
	adminListener, err := net.Listen("tcp", ringCtlAddr)
	if err != nil {
		log.Fatal("failed to bind admin listener", logging.Error(err))
	}
	grpcSrv := grpc.NewServer()
	admin := ringctl.NewServer(node, node.Trips(), node, cfg.AdminToken, log)
	ringctl.RegisterRingControlServer(grpcSrv, admin)
	go admin.Run(ctx, 2*time.Second)
	go func() {
		log.Info("admin grpc listening", logging.String("address", ringCtlAddr))
		if err := grpcSrv.Serve(adminListener); err != nil {
			log.Warn("admin grpc server exited", logging.Error(err))
		}
	}()

	log.Info("robot started", logging.Int("robot_id", robotID), logging.Int("max_robots", cfg.MaxRobots))

	<-ctx.Done()
	log.Info("shutting down")
	grpcSrv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

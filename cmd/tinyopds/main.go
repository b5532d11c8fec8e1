package main

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/tinyopds/tinyopds/pkg/config"
	"github.com/tinyopds/tinyopds/pkg/database"
	"github.com/tinyopds/tinyopds/pkg/jobs"
	"github.com/tinyopds/tinyopds/pkg/migrations"
	"github.com/tinyopds/tinyopds/pkg/server"
	"github.com/tinyopds/tinyopds/pkg/stats"
	"github.com/tinyopds/tinyopds/pkg/version"
	"github.com/tinyopds/tinyopds/pkg/worker"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting tinyopds", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	st := stats.New()
	wrkr := worker.New(cfg, db, st)

	srv, err := server.New(cfg, db, st)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		listener, err := server.Listen(ctx, srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}
		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	// Index whatever is already on disk; later scans run on the interval.
	if cfg.LibraryPath != "" {
		if err := wrkr.EnqueueScan(ctx, jobs.JobScanData{}); err != nil {
			log.Err(err).Error("initial scan error")
		}
	}

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

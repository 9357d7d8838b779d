package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/modelyard/modelyard/cmd/modelyardd/handlers"
	"github.com/modelyard/modelyard/pkg/artifacts"
	"github.com/modelyard/modelyard/pkg/configs/server"
	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/datasource"
	expdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	expmem "github.com/modelyard/modelyard/pkg/domain/experiment/db/memory"
	exppg "github.com/modelyard/modelyard/pkg/domain/experiment/db/postgres"
	"github.com/modelyard/modelyard/pkg/domain/schema"
	suitedb "github.com/modelyard/modelyard/pkg/domain/suite/db"
	suitemem "github.com/modelyard/modelyard/pkg/domain/suite/db/memory"
	suitepg "github.com/modelyard/modelyard/pkg/domain/suite/db/postgres"
	"github.com/modelyard/modelyard/pkg/pipeline"
	"github.com/modelyard/modelyard/pkg/search"
	"github.com/modelyard/modelyard/pkg/tracker"
	"github.com/modelyard/modelyard/pkg/utils/echoutil"
	"github.com/modelyard/modelyard/pkg/utils/filewatch"
	"github.com/modelyard/modelyard/pkg/worker"
)

func main() {
	configPath := flag.String("config-path", "", "server config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	flag.Parse()

	conf, err := server.Load(*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	ctx := context.Background()

	// config updates restart the server rather than reconfigure it live.
	{
		watched, cancel, err := filewatch.UntilModifyContext(ctx, *configPath)
		if err != nil {
			log.Fatalf("can not watch configuration: %s", err)
		}
		defer cancel()
		context.AfterFunc(watched, func() {
			log.Println("config file is updated. quit to restart server.")
			graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := e.Shutdown(graceful); err != nil {
				log.Printf("error on shutdown by config update: %s", err)
			}
		})
	}

	// storage
	var dbExp expdb.Interface
	var dbSuite suitedb.Interface
	var pgPool kpool.Pool
	if conf.DBURI != "" {
		pgPool, err = kpool.New(ctx, conf.DBURI)
		if err != nil {
			log.Fatalf("can not connect to database: %s", err)
		}
		defer pgPool.Close()
		if err := schema.Apply(ctx, pgPool); err != nil {
			log.Fatalf("can not apply schema: %s", err)
		}
		dbExp = exppg.New(pgPool)
		dbSuite = suitepg.New(pgPool)
	} else {
		log.Println("no dbURI configured. using in-memory store (not for production).")
		dbExp = expmem.New()
		dbSuite = suitemem.New()
	}

	var store artifacts.Store
	if conf.ArtifactRoot != "" {
		store = artifacts.OnFilesystem(conf.ArtifactRoot)
	} else {
		log.Println("no artifactRoot configured. using in-memory store (not for production).")
		store = artifacts.InMemory()
	}

	var provider datasource.Provider
	if conf.DatasetSchemaURI != "" {
		dataPool, err := kpool.New(ctx, conf.DatasetSchemaURI)
		if err != nil {
			log.Fatalf("can not connect to dataset database: %s", err)
		}
		defer dataPool.Close()
		provider = datasource.FromPostgres(dataPool)
	} else {
		provider = datasource.FromCSVDir(conf.DatasetRoot)
	}

	var track tracker.Tracker
	if conf.TrackerURL != "" {
		track = tracker.NewMLflow(conf.TrackerURL, conf.TrackerExperimentId)
	} else {
		track = tracker.Nop()
	}

	// execution
	pool := worker.New(ctx, conf.Workers, conf.Workers*16)
	defer pool.Shutdown()

	orchestrator := &pipeline.Orchestrator{
		Experiments: dbExp,
		Artifacts:   store,
		Datasource:  provider,
		Tracker:     track,
		Logger:      log.Default(),
	}
	controller := &search.Controller{
		Suites:      dbSuite,
		Experiments: dbExp,
		Pipeline:    orchestrator,
		Logger:      log.Default(),
	}

	// handlers
	{
		e.POST("/api/experiments/", handlers.CreateExperimentHandler(dbExp, uuid.NewString))
		e.GET("/api/experiments/", handlers.FindExperimentHandler(dbExp))
		e.GET("/api/experiments/:experimentId/", handlers.GetExperimentHandler(dbExp))
		e.POST("/api/experiments/:experimentId/run/", handlers.RunExperimentHandler(dbExp, pool, orchestrator.Run))
		e.POST("/api/experiments/:experimentId/retry/", handlers.RetryExperimentHandler(dbExp, pool, orchestrator.Run))
		e.POST("/api/experiments/:experimentId/cancel/", handlers.CancelExperimentHandler(dbExp))
		e.POST("/api/experiments/:experimentId/fork/", handlers.ForkExperimentHandler(dbExp, uuid.NewString))
		e.POST("/api/experiments/:experimentId/promote/", handlers.PromoteExperimentHandler(dbExp, store, track))
	}
	{
		e.POST("/api/suites/", handlers.CreateSuiteHandler(dbSuite, dbExp, uuid.NewString))
		e.GET("/api/suites/:suiteId/", handlers.GetSuiteHandler(dbSuite))
		e.POST("/api/suites/:suiteId/run/", handlers.RunSuiteHandler(dbSuite, pool, controller.Run))
	}

	if err := e.Start(fmt.Sprintf(":%d", conf.Port)); err != nil {
		e.Logger.Error(err)
	}
}

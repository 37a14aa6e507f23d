package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeromeabel/lapreuveduconcept/internal/config"
	"github.com/jeromeabel/lapreuveduconcept/internal/database"
	"github.com/jeromeabel/lapreuveduconcept/internal/handlers"
	"github.com/jeromeabel/lapreuveduconcept/internal/logging"
	"github.com/jeromeabel/lapreuveduconcept/internal/server"
	"github.com/jeromeabel/lapreuveduconcept/internal/store"
	"github.com/jeromeabel/lapreuveduconcept/internal/visitor"
	"github.com/jeromeabel/lapreuveduconcept/internal/votes"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer db.Close()

	if cfg.Seed {
		if err := database.Seed(ctx, db.GetDB()); err != nil {
			log.WithError(err).Fatal("failed to seed database")
		}
		log.Info("development votes seeded")
	}

	voteService := votes.NewService(store.NewVoteStore(db.GetDB()), log)
	handler := handlers.NewHandler(voteService, db, log)
	srv := server.New(cfg, handler, visitor.NewProvider(cfg.VisitorTokenSecret), log).HTTPServer()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithField("addr", srv.Addr).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server stopped")
}

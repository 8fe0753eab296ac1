package main

import (
	"context"
	"log/slog"
	"moodmate/app/api"
	"moodmate/app/config"
	"moodmate/app/service/conversation"
	"moodmate/app/service/engine"
	"moodmate/app/service/goals"
	"moodmate/app/service/journal"
	"moodmate/app/service/proactive"
	"moodmate/app/service/risk"
	"moodmate/app/service/signals"
	"moodmate/app/store"
	"moodmate/app/util/mylog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, store.New)
	do.Provide(di, risk.New)
	do.Provide(di, signals.New)
	do.Provide(di, goals.New)
	do.Provide(di, journal.New)
	do.Provide(di, proactive.New)
	do.Provide(di, conversation.New)
	do.Provide(di, engine.New)
	do.Provide(di, api.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go do.MustInvoke[*engine.Service](di).Run(appCtx)
	go do.MustInvoke[*api.Server](di).Run(appCtx)

	<-appCtx.Done()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/SparshBisen/Crypto/api/httpserver"
	"github.com/SparshBisen/Crypto/api/ws"
	"github.com/SparshBisen/Crypto/bus"
	"github.com/SparshBisen/Crypto/config"
	"github.com/SparshBisen/Crypto/infra/kafka"
	"github.com/SparshBisen/Crypto/infra/outbox"
	"github.com/SparshBisen/Crypto/jobs/broadcaster"
	"github.com/SparshBisen/Crypto/service"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Core ----------------

	eventBus := bus.New(cfg.EventBuffer)
	defer eventBus.Close()

	engine := service.NewMatchingEngine(
		eventBus,
		log,
		service.WithEventDepth(cfg.DepthLimit),
	)

	g, ctx := errgroup.WithContext(ctx)

	// ---------------- Egress pipeline ----------------

	if cfg.KafkaEnabled() {
		ob, err := outbox.Open(cfg.OutboxDir)
		if err != nil {
			log.WithError(err).Fatal("outbox open failed")
		}
		defer ob.Close()

		bc, err := broadcaster.New(ob, cfg.KafkaBrokers, cfg.TradeTopic, 250*time.Millisecond, log)
		if err != nil {
			log.WithError(err).Fatal("broadcaster init failed")
		}
		defer bc.Close()

		tradeSub := engine.Subscribe(bus.KindTrade)
		g.Go(func() error {
			bc.Ingest(ctx, tradeSub.Events())
			return nil
		})
		g.Go(func() error {
			bc.Run(ctx)
			return nil
		})

		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.MarketDataTopic)
		defer producer.Close()

		bboSub := engine.Subscribe(bus.KindBbo)
		depthSub := engine.Subscribe(bus.KindDepth)
		g.Go(func() error {
			streamMarketData(ctx, producer, log, bboSub.Events(), depthSub.Events())
			return nil
		})
	}

	// ---------------- Gateway ----------------

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	httpserver.NewServer(engine, log).Register(e)
	ws.NewHub(engine, log).Register(e)

	g.Go(func() error {
		log.WithField("addr", cfg.Addr()).Info("exchange gateway listening")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("shutdown complete")
}

// streamMarketData forwards bbo and depth frames to the market-data topic,
// keyed by symbol. Losing a frame here is acceptable; the next one
// supersedes it.
func streamMarketData(
	ctx context.Context,
	producer *kafka.Producer,
	log *logrus.Logger,
	bboEvents, depthEvents <-chan bus.Event,
) {
	send := func(e bus.Event) {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return
		}
		if err := producer.Send(ctx, []byte(e.Symbol), payload); err != nil {
			log.WithError(err).Debug("market-data publish failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-bboEvents:
			if !ok {
				return
			}
			send(e)
		case e, ok := <-depthEvents:
			if !ok {
				return
			}
			send(e)
		}
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"matchbook/internal/api"
	"matchbook/internal/config"
	"matchbook/internal/engine"
	"matchbook/internal/feed"
	"matchbook/internal/orderbook"
	"matchbook/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := newLogger(cfg.Debug)
	if err != nil {
		os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.String("path", cfg.DBPath), zap.Error(err))
	}

	eng := engine.New(cfg.Symbol, log)

	// Trade fanout: persist every execution, and publish it to Kafka
	// when a feed is configured.
	eng.OnTrade(func(trade orderbook.Trade) {
		if err := st.RecordTrade(cfg.Symbol, trade); err != nil {
			log.Error("failed to persist trade",
				zap.String("trade_id", trade.ID),
				zap.Error(err),
			)
		}
	})

	var publisher *feed.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = feed.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.Symbol, log)
		eng.OnTrade(func(trade orderbook.Trade) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = publisher.PublishTrade(ctx, trade)
		})
		log.Info("trade feed enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	server := api.NewServer(eng, st, log)
	if len(cfg.CORSOrigins) > 0 {
		server.SetCORSOrigins(cfg.CORSOrigins)
		log.Info("CORS restricted", zap.Strings("origins", cfg.CORSOrigins))
	}
	if cfg.RateLimit > 0 {
		server.SetRateLimit(cfg.RateLimit)
		log.Info("rate limiting enabled", zap.Int("requests_per_minute", cfg.RateLimit))
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Info("starting matchbook server",
			zap.String("addr", cfg.Addr),
			zap.String("symbol", cfg.Symbol),
			zap.String("db", cfg.DBPath),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warn("trade feed close error", zap.Error(err))
		}
	}

	if err := st.Close(); err != nil {
		log.Warn("database close error", zap.Error(err))
	}

	log.Info("shutdown complete")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

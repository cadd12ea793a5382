package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-cosmetics-orders/internal/config"
	kafkax "github.com/ariefcatur/go-cosmetics-orders/internal/kafka"
	"github.com/ariefcatur/go-cosmetics-orders/internal/logx"
	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/notify"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/ariefcatur/go-cosmetics-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-notifier"
	log := logx.New(service, cfg.LogLevel)
	if !cfg.KafkaEnabled() {
		log.Error("KAFKA_BROKERS is required for the notifier")
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		log.Error("smtp", "error", err)
		os.Exit(1)
	}
	n := notify.Multi{Email: mailer, Push: notify.NewWebPusher(5 * time.Second)}
	m := metrics.New(prometheus.NewRegistry())
	w := notify.NewWorker(n, rdb, service, m, log)

	msrv := &http.Server{Addr: cfg.NotifierMetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics listener", "error", err)
		}
	}()

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicNotifications, cfg.NotifierWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("notifier consumer started",
			"group", cfg.NotifierGroup, "topic", orders.TopicNotifications, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, w.Handle); err != nil {
			log.Error("consumer exit", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done

	ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel2()
	_ = msrv.Shutdown(ctx2)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-cosmetics-orders/internal/cart"
	"github.com/ariefcatur/go-cosmetics-orders/internal/checkout"
	"github.com/ariefcatur/go-cosmetics-orders/internal/clock"
	"github.com/ariefcatur/go-cosmetics-orders/internal/config"
	"github.com/ariefcatur/go-cosmetics-orders/internal/httpx"
	"github.com/ariefcatur/go-cosmetics-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-cosmetics-orders/internal/kafka"
	"github.com/ariefcatur/go-cosmetics-orders/internal/lifecycle"
	"github.com/ariefcatur/go-cosmetics-orders/internal/logx"
	"github.com/ariefcatur/go-cosmetics-orders/internal/memory"
	"github.com/ariefcatur/go-cosmetics-orders/internal/metrics"
	"github.com/ariefcatur/go-cosmetics-orders/internal/notify"
	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/ariefcatur/go-cosmetics-orders/internal/postgres"
	"github.com/ariefcatur/go-cosmetics-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

// stores groups the persistence ports; postgres and memory each fill it.
type stores struct {
	tx      orders.Transactor
	catalog orders.Catalog
	stock   orders.StockStore
	carts   orders.CartStore
	orders  orders.OrderStore
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		st           stores
		checkoutLock checkout.Locker
		orderLock    lifecycle.Locker
		push         orders.PushDirectory
		cache        lifecycle.StatusCache
	)
	switch cfg.Store {
	case "memory":
		mem := memory.New()
		seedCatalog(mem)
		st = stores{tx: mem, catalog: mem, stock: mem, carts: mem, orders: mem}
		locks := memory.NewLocker()
		checkoutLock, orderLock = locks, locks
		push = memory.NewPushDirectory()
		log.Warn("running with in-memory store; data is lost on exit")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, 20)
		if err != nil {
			log.Error("db connect", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrate", "error", err)
			os.Exit(1)
		}
		repo := &orders.Repo{DB: db}
		st = stores{tx: repo, catalog: repo, stock: &orders.StockRepo{DB: db}, carts: &orders.CartRepo{DB: db}, orders: repo}

		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		checkoutLock = redisx.NewLocker(rdb, cfg.CheckoutLockTTL)
		orderLock = redisx.NewLocker(rdb, redisx.TTLOrderLock)
		push = redisx.NewPushDirectory(rdb)
		cache = redisx.NewStatusCache(rdb)
	}

	var (
		dispatcher notify.Dispatcher
		events     orders.EventPublisher
		prod       *kafkax.Producer
	)
	if cfg.KafkaEnabled() {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start(ctx)
		events = prod
		dispatcher = notify.NewKafkaDispatcher(prod, cfg.ServiceName)
	} else {
		n, err := newNotifier(cfg)
		if err != nil {
			log.Error("notifier", "error", err)
			os.Exit(1)
		}
		dispatcher = notify.NewDirectDispatcher(n, m, log)
		log.Info("kafka disabled; notifications are sent in-process")
	}

	ledger := inventory.NewLedger(st.stock, m, log)
	carts := cart.NewStore(st.carts, st.catalog, ledger, log)
	engine := checkout.New(checkout.Deps{
		Tx:         st.tx,
		Carts:      st.carts,
		Catalog:    st.catalog,
		Orders:     st.orders,
		Ledger:     ledger,
		Locker:     checkoutLock,
		Dispatcher: dispatcher,
		Events:     events,
		Clock:      clock.NewSystem(),
		Metrics:    m,
		Log:        log,
	}, cfg.ShippingFee, cfg.ServiceName)
	lc := lifecycle.New(lifecycle.Deps{
		Tx:         st.tx,
		Orders:     st.orders,
		Ledger:     ledger,
		Locker:     orderLock,
		Push:       push,
		Dispatcher: dispatcher,
		Events:     events,
		Cache:      cache,
		Clock:      clock.NewSystem(),
		Log:        log,
	}, cfg.ServiceName)

	router := httpx.NewRouter(log, m)
	h := &httpx.Handler{
		Cart:     carts,
		Checkout: engine,
		Orders:   lc,
		Catalog:  st.catalog,
		Push:     push,
		Log:      log,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close() // flush queued events
		prod.WaitClosed()
	}
	cancel()
}

func newNotifier(cfg config.Config) (notify.Notifier, error) {
	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, err
	}
	return notify.Multi{Email: mailer, Push: notify.NewWebPusher(5 * time.Second)}, nil
}

// seedCatalog gives STORE=memory something to sell.
func seedCatalog(s *memory.Store) {
	for _, p := range []orders.Product{
		{ID: "lip-tint-rose", Name: "Rose Lip Tint", Price: decimal.RequireFromString("100.00"), Stock: 25},
		{ID: "serum-vitc", Name: "Vitamin C Serum", Price: decimal.RequireFromString("450.00"), Stock: 10},
		{ID: "sunscreen-50", Name: "Sunscreen SPF50", Price: decimal.RequireFromString("299.00"), Stock: 40},
		{ID: "cleanser-gel", Name: "Gentle Gel Cleanser", Price: decimal.RequireFromString("50.00"), Stock: 30},
	} {
		s.PutProduct(p)
	}
}

package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	miniauth "github.com/velora-app/miniapp-session"
	"github.com/velora-app/miniapp-session/middleware/gate"
)

// gatedPrefixes are the route families that require a session. Everything
// outside them passes through the gate untouched.
var gatedPrefixes = []string{
	"/services(.*)",
	"/profile(.*)",
	"/bookings(.*)",
	"/favorites(.*)",
	"/about(.*)",
	"/master/bookings(.*)",
	"/master/schedule(.*)",
	"/api/services(.*)",
	"/api/profile(.*)",
	"/api/bookings(.*)",
	"/api/favorites(.*)",
	"/api/master/bookings(.*)",
	"/api/master/schedule(.*)",
}

var publicRoutes = []string{
	"/",
	"/api/auth/telegram",
	"/api/auth/telegram/check",
	"/api/categories(.*)",
}

var staticPrefixes = []string{
	"/_next",
	"/images",
	"/uploads",
	"/favicon.ico",
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := createSchema(context.Background(), db); err != nil {
		return err
	}

	tokens, err := miniauth.NewTokenService([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo := miniauth.NewRepositoryManager(db)
	exchanger := miniauth.NewExchanger(repo, tokens,
		miniauth.WithExchangerMetrics(miniauth.NewExchangeMetrics(registry)))
	controller := miniauth.NewAuthController(exchanger)

	verifier := miniauth.NewProbedVerifier(tokens, miniauth.NewUnverifiedDecoder())

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())

	app.Use(gate.New(gate.Config{
		Verifier:       verifier,
		PublicRoutes:   publicRoutes,
		GatedPrefixes:  gatedPrefixes,
		StaticPrefixes: staticPrefixes,
		RedirectTarget: cfg.RedirectTarget,
		Metrics:        gate.NewMetrics(registry),
	}))

	miniauth.RegisterAuthRoutes(app, controller)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(cfg.HTTPAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-stop:
		log.Printf("server: received %s, shutting down", sig)
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}

func openDatabase(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func createSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*miniauth.City)(nil),
		(*miniauth.District)(nil),
		(*miniauth.User)(nil),
		(*miniauth.MasterProfile)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"domainatlas/internal/config"
	"domainatlas/internal/handler"
	"domainatlas/internal/service"
	"domainatlas/internal/storage"
	"domainatlas/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	utils.InitLogger(cfg.LogLevel)
	defer func() {
		_ = utils.Log.Sync()
	}()

	// Dependencies
	store := storage.NewStorage(cfg.RedisHost, cfg.RedisPort)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		utils.Log.Fatal("redis unreachable", utils.Field("error", err.Error()))
	}
	cancelPing()

	asnSvc := service.NewASNService(cfg.DataDir, cfg.MaxMindAccountID, cfg.MaxMindLicenseKey, cfg.GeoIPURL)
	if cfg.EnableGeo {
		asnSvc.Initialize()
	}
	dnsSvc := service.NewDNSService(cfg.DNSResolver)
	bus := service.NewProgressBus()

	pipe := &service.Pipeline{
		Store:           store,
		Directory:       service.NewDirectoryService(cfg.DirectoryBaseURL),
		Resolver:        service.NewResolver(dnsSvc, asnSvc),
		Redirects:       service.NewRedirectService(cfg.RedirectMaxHops),
		Bus:             bus,
		Concurrency:     cfg.ResolveConcurrency,
		CacheTTL:        time.Duration(cfg.CacheTTLHours) * time.Hour,
		DataDir:         cfg.DataDir,
		LookupRegistrar: cfg.EnableWhois,
	}
	h := handler.NewHandler(store, pipe, bus, cfg.TrustedIPs, utils.ProxyConfig{
		TrustProxy:    cfg.TrustProxy,
		UseCloudflare: cfg.UseCloudflare,
	})

	// Startup tasks
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	if cfg.EnableGeo {
		asnSvc.StartUpdater(bgCtx)
	}
	sched := service.NewScheduler(pipe, cfg.RunSchedule)
	if cfg.EnableScheduler {
		if err := sched.Start(); err != nil {
			utils.Log.Fatal("invalid run schedule", utils.Field("schedule", cfg.RunSchedule), utils.Field("error", err.Error()))
		}
	}
	if cfg.RunOnStart {
		if err := pipe.Start(service.RunOptions{}); err != nil {
			utils.Log.Warn("startup run not started", utils.Field("error", err.Error()))
		}
	}

	// Web server
	e := newServer(h)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	if cfg.EnableScheduler {
		sched.Stop()
	}
	cancelBg()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}

func newServer(h *handler.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20))) // 20 requests per second

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := http.StatusText(code)
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}
		if jsonErr := c.JSON(code, map[string]interface{}{"error": message}); jsonErr != nil {
			c.Logger().Error(jsonErr)
		}
	}

	e.GET("/healthz", h.Healthz)
	e.POST("/run", h.TriggerRun)
	e.GET("/results", h.Results)
	e.GET("/results.csv", h.ResultsCSV)
	e.GET("/summary", h.Summary)
	e.GET("/history/:domain", h.History)
	e.GET("/ws", h.HandleWS)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

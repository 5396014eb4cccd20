package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	"github.com/hydraterm/hydraterm/internal/gatt"
	"github.com/hydraterm/hydraterm/internal/ledger"
	"github.com/hydraterm/hydraterm/internal/middleware"
	"github.com/hydraterm/hydraterm/internal/notify"
	"github.com/hydraterm/hydraterm/internal/payment"
)

// App is the main application, it contains all the components of the
// terminal and is responsible for starting and stopping them.
type App struct {
	srv    *http.Server
	wg     *sync.WaitGroup
	Addr   string
	logger *slog.Logger
	config *Config

	hub          *notify.Hub
	orchestrator *payment.Orchestrator
	peripheral   *gatt.Loopback
	driver       *gatt.Driver
	repo         *Repository
}

// Status is a point-in-time view of the terminal served on /-/status.
type Status struct {
	Sessions      int    `json:"sessions"`
	Listeners     int    `json:"listeners"`
	Advertising   bool   `json:"advertising"`
	ActiveService string `json:"activeService,omitempty"`
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "terminal"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	scope, _ := notify.ParseScope(a.config.NotifyScope)

	// one notifier and one ledger client per process, handed to the
	// components that need them
	a.hub = notify.NewHub(a.logger, scope, a.config.NotifyBuffer)
	ledgerClient := ledger.New(a.config.LedgerBaseURL, nil)
	a.orchestrator = payment.New(a.logger, ledgerClient, a.hub, payment.Config{
		CallTimeout:    a.config.LedgerTimeout,
		NativeDecimals: a.config.LedgerDecimals,
	})

	a.peripheral = gatt.NewLoopback()
	a.driver = gatt.NewDriver(a.logger, a.peripheral, a.config.DeviceName)
	a.repo = NewRepository()

	sessions := NewService(a.logger, a.repo, a.orchestrator, a.driver, a.hub)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))
	router.Use(chimiddleware.Recoverer)

	NewAPI(sessions).AppendRoutes(router)
	a.peripheral.AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.Status()); err != nil {
			a.logger.Error("encoding status", "err", err)
		}
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	// the loopback adapter is ready as soon as the process is
	a.peripheral.PowerOn()

	return nil
}

// ConnectedSessions returns the number of sessions listening for payment events.
func (a *App) ConnectedSessions() int {
	return a.hub.Connected()
}

func (a *App) Status() Status {
	st := Status{
		Sessions:    a.repo.CountSessions(),
		Listeners:   a.hub.Connected(),
		Advertising: a.peripheral.Advertising(),
	}
	if svc := a.driver.Active(); svc != nil {
		st.ActiveService = svc.UUID
	}
	return st
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	// no new writes once the adapter is off
	a.peripheral.PowerOff()

	// payment runs are never cancelled; wait for those in flight so their
	// events still reach connected sessions
	a.orchestrator.Close()

	// closing the hub ends open event streams so the server can drain
	a.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Error("shutting down http server", "err", err)
	}

	a.wg.Wait()

	a.logger.Info("app stopped")
}

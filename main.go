package main

// POST   /sessions          - Open a shopping session (one shared cart)
// DELETE /sessions/{id}     - End a session and drop its cart
// POST   /products          - Create a new product in the backend
// GET    /products/list     - For listing all products
// POST   /products/stock    - Set a product's stock
// GET    /cart/list         - For listing cart products with totals
// GET    /cart/qty          - Quantity of one product in the cart
// POST   /cart/add          - Add one unit of a product to the cart
// POST   /cart/inc          - Increment a cart line
// POST   /cart/dec          - Decrement a cart line
// POST   /cart/remove       - Remove a product from cart
// POST   /cart/clear        - Empty the cart
// POST   /checkout/order    - For a checkout

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"shopping-cart/config"
	"shopping-cart/handler"
	"shopping-cart/logger"
	"shopping-cart/service"
	"shopping-cart/session"
	"shopping-cart/store"
)

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		panic(err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic(err)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	st, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer st.Close()
	st.DB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	st.DB.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	log.Info("database migrations applied", zap.String("db", cfg.Database.DBName))

	// --- Sessions ---
	sessions := session.NewRegistry(
		session.WithLogger(log),
		session.WithIdleTTL(cfg.Session.IdleTTL),
	)
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	// --- Service / Handlers ---
	svc := service.NewService(st, sessions, log)
	h := handler.NewHandler(svc, log)

	r := mux.NewRouter()
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped", zap.Int("open_sessions", sessions.Len()))
	return nil
}

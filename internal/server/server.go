package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/handlers"
	"github.com/akolanti/docqa/internal/mcpTool"
	"github.com/akolanti/docqa/internal/middleware"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

var (
	server  *http.Server
	_logger = logger_i.NewLogger("Server")
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	// StopWorkers drains the CPU worker pool after the listener is closed.
	StopWorkers   func()
	CloseServices context.CancelFunc
}

// NewRouter mounts every route on a fresh router.
func NewRouter(service rag.Service, settings config.Settings) *chi.Mux {
	r := utils.NewRouter()
	mw := middleware.New(settings.Server)
	runHandler := handlers.NewRunHandler(service, settings.Pipeline.MaxQuestions)

	r.Get("/", mw.Public(handlers.GetHandler))
	r.Get("/health", mw.Public(handlers.HealthHandler))

	r.Post("/hackrx/run", mw.Protected(runHandler.Run))
	r.Post("/api/v1/hackrx/run", mw.Protected(runHandler.Run))
	r.Get("/runs/{id}", mw.Protected(runHandler.GetRunStatus))

	r.Handle("/mcp", mw.ProtectedHandler(mcpTool.NewServer(service, settings.Pipeline.MaxQuestions).Handler()))
	return r
}

func CreateServer(listenAddr string, handler http.Handler) {
	server = &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		if shutdownParams.StopWorkers != nil {
			shutdownParams.StopWorkers()
		}
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}

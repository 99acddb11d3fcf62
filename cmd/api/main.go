// @title           DocQA API
// @version         1.0
// @description     Answers questions about a single document fetched from a URL.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/server"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/joho/godotenv"
)

var (
	listenAddr string
	configPath string
)

func main() {
	_ = godotenv.Load()

	flag.StringVar(&configPath, "config", "docqa.yaml", "optional yaml config file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	logger_i.Init(logger_i.Options{Level: cfg.Log.Level, IsProd: cfg.Log.IsProd})
	logger := logger_i.NewLogger("main")
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if cfg.Server.AuthToken == "" && !cfg.Server.NoAuthBypass {
		logger.Warn("API_TOKEN is not set, every protected request will be rejected")
	}

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	components, err := app.Build(serviceContext, cfg, app.Options{UseRedis: true})
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		os.Exit(1)
	}

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		StopWorkers:      components.Pool.Stop,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(cfg.Server.ListenAddr, server.NewRouter(components.Service, cfg))

	<-stopExecution
	logger.Info("Server stopped")
}

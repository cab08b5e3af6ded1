package main

import (
	"github.com/joho/godotenv"

	"github.com/ryom080502-dev/audioGIJI6/internal/config"
	httpserver "github.com/ryom080502-dev/audioGIJI6/internal/http"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	srv, err := httpserver.NewServer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create server")
	}

	log.WithField("port", cfg.Port).Info("starting server")
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spinshot/internal/adapter/repo"
	"spinshot/internal/http/handlers"
	"spinshot/internal/http/httpapi"
	"spinshot/internal/infra"
	"spinshot/internal/pipeline"
	"spinshot/internal/providers/imagehost"
	"spinshot/internal/providers/video"
	"spinshot/internal/providers/vision"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	describer, err := vision.NewGeminiDescriber(vision.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure vision describer")
	}

	synthesizer, err := video.NewVeoSynthesizer(video.VeoOptions{
		APIKey:       cfg.GeminiAPIKey,
		Model:        cfg.VideoModel,
		BaseURL:      cfg.GeminiBaseURL,
		PollInterval: cfg.VideoPollInterval,
		MaxPolls:     cfg.VideoMaxPolls,
		HTTPClient:   &http.Client{Timeout: 120 * time.Second},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video synthesizer")
	}

	uploader := buildUploader(cfg, logger)

	store := repo.NewMemoryJobStore()
	runner := pipeline.NewRunner(store, uploader, describer, synthesizer, logger)

	app := handlers.NewApp(runner, store, logger)
	router := httpapi.NewRouter(app, logger, cfg.AllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildUploader picks the configured image host. With neither host configured
// the pipeline runs with original image references only; hosting is
// best-effort by contract.
func buildUploader(cfg *infra.Config, logger infra.Logger) imagehost.Uploader {
	switch {
	case cfg.ImageHostConfigured():
		host, err := imagehost.NewHTTPHost(imagehost.HTTPHostOptions{
			BaseURL: cfg.ImageHostURL,
			APIKey:  cfg.ImageHostAPIKey,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("image host unavailable, uploads disabled")
			return nil
		}
		return host
	case cfg.MinioConfigured():
		host, err := imagehost.NewMinIOHost(imagehost.MinIOOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			PublicURL: cfg.MinioPublicURL,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("object storage unavailable, uploads disabled")
			return nil
		}
		return host
	default:
		logger.Info().Msg("no image host configured, uploads disabled")
		return nil
	}
}

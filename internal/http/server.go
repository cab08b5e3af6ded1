package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/ryom080502-dev/audioGIJI6/internal/audio"
	"github.com/ryom080502-dev/audioGIJI6/internal/config"
	"github.com/ryom080502-dev/audioGIJI6/internal/export"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
	"github.com/ryom080502-dev/audioGIJI6/internal/minutes"
	"github.com/ryom080502-dev/audioGIJI6/internal/services"
	"github.com/ryom080502-dev/audioGIJI6/internal/storage"
	"github.com/ryom080502-dev/audioGIJI6/pkg/executor"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
}

func NewServer(cfg config.Config, log *logger.Logger) (*Server, error) {
	if cfg.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	fm, err := storage.NewFileManager(cfg.DataDir, cfg.MaxUploadBytes, log)
	if err != nil {
		return nil, fmt.Errorf("init file manager: %w", err)
	}

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	auth := services.NewAuthService(cfg, store, log)
	if err := auth.EnsureDemoUsers(); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	links := services.NewUploadLinkService(cfg)

	gemini := services.NewGeminiService(cfg, log)
	segmenter := audio.NewSegmenter(cfg.FFmpegPath, cfg.SegmentDuration, executor.New(), log)
	pipeline := minutes.NewPipeline(gemini, segmenter, gemini, minutes.Options{
		IngressLimit: cfg.IngressLimitBytes,
		Workers:      cfg.AnalyzeWorkers,
		Polish:       cfg.MergePolish,
	}, log)
	exporter := export.NewAdapter(cfg, log)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(MaxBodySize(cfg.MaxUploadBytes))
	engine.Use(CORS())

	api := NewAPI(cfg, fm, auth, links, pipeline, exporter, log)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg}, nil
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)
	return s.engine.Run(addr)
}

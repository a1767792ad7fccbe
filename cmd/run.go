package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/mirrorvoice/domain/entities"
	"github.com/satriahrh/mirrorvoice/internal/api"
	"github.com/satriahrh/mirrorvoice/internal/auth"
	"github.com/satriahrh/mirrorvoice/internal/config"
	"github.com/satriahrh/mirrorvoice/internal/observability"
	"github.com/satriahrh/mirrorvoice/internal/websocket"
	"github.com/satriahrh/mirrorvoice/usecase"
)

const shutdownTimeout = 10 * time.Second

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Listen for the wake word and serve the display API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runAssistant(cmd.Context(), cfg, logger)
		},
	}
}

func runAssistant(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics(nil)
	hub := websocket.NewHub(metrics, logger.Named("hub"))

	history := entities.NewConversationHistory(cfg.MaxChatHistory)
	historyStore, err := buildHistoryStore(cfg, logger)
	if err != nil {
		return err
	}
	if historyStore != nil {
		turns, err := historyStore.Load()
		if err != nil {
			logger.Warn("Ignoring unreadable history snapshot", zap.Error(err))
		} else {
			history.Restore(turns)
		}
		defer func() {
			if err := historyStore.Save(history.Turns()); err != nil {
				logger.Error("Failed to save history snapshot", zap.Error(err))
			}
		}()
	}

	archive, closeArchive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	backend, err := buildLLM(ctx, cfg, logger)
	if err != nil {
		return err
	}
	speech, closeSTT, err := buildSTT(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSTT()
	synthesizer, err := buildTTS(cfg, logger)
	if err != nil {
		return err
	}
	devices, err := buildAudio(cfg, logger)
	if err != nil {
		return err
	}

	toolList, reminders, err := buildTools(cfg, hub, logger)
	if err != nil {
		return err
	}
	defer reminders.Stop()

	registry := usecase.NewToolRegistry(metrics, logger.Named("tools"))
	if err := registry.Register(toolList...); err != nil {
		return err
	}

	engine := usecase.NewResponseEngine(backend, registry, usecase.ResponseEngineConfig{
		SystemPrompt:  cfg.SystemPrompt,
		HistoryWindow: cfg.HistoryWindow,
		ToolTimeout:   cfg.ToolTimeout,
	}, metrics, logger.Named("engine"))

	speaker := usecase.NewSpeaker(synthesizer, devices.player, cfg.PlaybackTimeout, logger.Named("speaker"))

	controller, err := usecase.NewSessionController(usecase.SessionDependencies{
		Source:   devices.source,
		Spotter:  devices.spotter,
		STT:      speech,
		Engine:   engine,
		Speaker:  speaker,
		History:  history,
		Archive:  archive,
		Notifier: hub,
		Metrics:  metrics,
	}, usecase.SessionConfig{
		CommandTimeout:  cfg.CommandTimeout,
		SettleDelay:     cfg.SettleDelay,
		ResponseTimeout: cfg.ResponseTimeout,
		LanguageCode:    cfg.LanguageCode,
		ApologyText:     cfg.ApologyText,
		IdleText:        cfg.IdleText,
	}, logger.Named("session"))
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Dependencies{
		Hub:     hub,
		Status:  controller,
		History: history,
		Archive: archive,
		Tokens:  auth.NewTokenIssuer(cfg.DisplayJWTSecret, cfg.DisplayTokenTTL),
		Metrics: metrics,
		Version: version,
	}, logger.Named("api"))

	logger.Info("Starting mirrorvoice",
		zap.String("version", version),
		zap.String("wakeWord", cfg.WakeWord),
		zap.String("ai", cfg.AIProvider),
		zap.String("stt", cfg.STTProvider),
		zap.String("tts", cfg.TTSProvider),
		zap.String("audio", cfg.AudioBackend),
		zap.String("addr", cfg.BindAddr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		if err := e.Start(cfg.BindAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("mirrorvoice stopped", zap.Error(err))
	return err
}

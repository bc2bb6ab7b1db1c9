// Command speaker runs the voice assistant. Build with -tags hostaudio to
// link the PortAudio microphone and the beep speaker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/adapters/audio"
	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
	"github.com/satriahrh/smartspeaker/internal/api"
	"github.com/satriahrh/smartspeaker/internal/app"
	"github.com/satriahrh/smartspeaker/internal/auth"
	"github.com/satriahrh/smartspeaker/internal/capture"
	"github.com/satriahrh/smartspeaker/internal/config"
	"github.com/satriahrh/smartspeaker/internal/conversation"
	"github.com/satriahrh/smartspeaker/internal/playback"
	"github.com/satriahrh/smartspeaker/internal/segmenter"
	"github.com/satriahrh/smartspeaker/internal/websocket"
	"github.com/satriahrh/smartspeaker/usecase"
)

func main() {
	bootstrap, _ := zap.NewProduction()

	cfg, err := config.Load(bootstrap)
	if err != nil {
		bootstrap.Fatal("Invalid configuration", zap.Error(err))
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		bootstrap.Fatal("Failed to build logger", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()

	if err != nil {
		logger.Error("Speaker stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Speaker exited")
	logger.Sync()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	driver, err := audio.NewPortAudioDriver(logger)
	if err != nil {
		return err
	}
	defer driver.Close()
	capture.LogDevices(driver, logger)

	recognizer := app.NewRecognizer(cfg, os.Stdin, logger)

	synth, closeSynth, err := app.NewSynthesizer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSynth()

	completion, err := app.NewCompletion(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store, closeStore, err := app.NewHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	conv := conversation.New(store, conversation.Config{HistoryLength: cfg.HistoryLength}, logger)

	var publisher repositories.EventPublisher = repositories.NopPublisher{}
	var hub *websocket.Hub
	if cfg.DiagAddr != "" {
		hub = websocket.NewHub(logger)
		publisher = hub
	}

	mixer := audio.NewAmixer(audio.AmixerConfig{Card: cfg.MixerCard, Control: cfg.MixerControl}, logger)
	player := audio.NewBeepPlayer(audio.BeepPlayerConfig{OutputFile: cfg.PlaybackOutputFile}, logger)
	arbiter := playback.New(mixer, player, synth, playback.Config{}, logger)
	arbiter.OnMuteChange(func(muted bool) {
		event := entities.NewEvent(entities.EventMute, "")
		event.Muted = &muted
		publisher.Publish(event)
	})

	// A previous crash may have left the microphone switched off
	if err := arbiter.Restore(ctx); err != nil {
		logger.Warn("Failed to enable capture at startup", zap.Error(err))
	}

	if cfg.GreetingFile != "" {
		playGreeting(ctx, arbiter, cfg.GreetingFile, logger)
	}

	dialog := usecase.NewDialogService(completion, conv, arbiter, conversation.RoleFile{Path: cfg.RoleFile}, cfg.UserID, publisher, logger)
	runner := usecase.NewSessionRunner(driver, recognizer, dialog, usecase.RunnerConfig{
		Capture: repositories.CaptureParams{
			SampleRate:      cfg.SampleRate,
			Channels:        1,
			FramesPerBuffer: cfg.ChunkFrames,
		},
		Device:      capture.ParseDeviceSelector(cfg.CaptureDevice),
		Recognition: app.RecognitionConfig(cfg),
		Segmenter: segmenter.Config{
			PauseTime:     cfg.PauseTime,
			MinTextLength: cfg.MinTextLength,
		},
		RestartOnError: cfg.SessionRestart,
	}, publisher, logger)

	if hub != nil {
		shutdown, err := startDiagnostics(ctx, cfg, hub, driver, conv, runner, arbiter, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	logger.Info("Listening", zap.String("device", capture.ParseDeviceSelector(cfg.CaptureDevice).String()))
	return runner.Run(ctx)
}

func playGreeting(ctx context.Context, arbiter *playback.Arbiter, path string, logger *zap.Logger) {
	greeting, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read greeting", zap.String("path", path), zap.Error(err))
		return
	}
	if err := arbiter.Play(ctx, greeting); err != nil {
		logger.Warn("Failed to play greeting", zap.Error(err))
	}
}

func startDiagnostics(
	ctx context.Context,
	cfg config.Config,
	hub *websocket.Hub,
	driver repositories.CaptureDriver,
	conv *conversation.Context,
	runner *usecase.SessionRunner,
	arbiter *playback.Arbiter,
	logger *zap.Logger,
) (func(), error) {
	var tokens *auth.TokenService
	if cfg.DiagJWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(cfg.DiagJWTSecret, 0)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("DIAG_JWT_SECRET not set, diagnostics endpoints are unauthenticated")
	}

	hubCtx, cancelHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	reporter := websocket.NewStatusReporter(hub, func() websocket.Status {
		status := websocket.Status{Muted: arbiter.Muted()}
		if s := runner.Current(); s != nil {
			info := s.Info()
			status.Session = &info
		}
		return status
	}, 0, logger)
	reporter.Start()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("Diagnostics request", zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))

	api.InitRoutes(e, api.Dependencies{
		Hub:          hub,
		Driver:       driver,
		Conversation: conv,
		Sessions:     runner,
		Muted:        arbiter.Muted,
		Tokens:       tokens,
		Logger:       logger,
	})

	go func() {
		if err := e.Start(cfg.DiagAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Diagnostics server failed", zap.Error(err))
		}
	}()
	logger.Info("Diagnostics server started", zap.String("addr", cfg.DiagAddr))

	return func() {
		reporter.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Diagnostics server forced to shutdown", zap.Error(err))
		}
		cancelHub()
	}, nil
}

// Command say synthesizes text and plays it with the microphone muted,
// the same way the speaker answers a question.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/adapters/audio"
	"github.com/satriahrh/smartspeaker/adapters/tts"
	"github.com/satriahrh/smartspeaker/domain/repositories"
	"github.com/satriahrh/smartspeaker/internal/app"
	"github.com/satriahrh/smartspeaker/internal/config"
	"github.com/satriahrh/smartspeaker/internal/playback"
)

func main() {
	noMixer := flag.Bool("no-mixer", false, "do not toggle the capture switch")
	listVoices := flag.Bool("voices", false, "list the ElevenLabs voices and exit")
	flag.Parse()

	bootstrap, _ := zap.NewDevelopment()
	if *listVoices {
		printVoices(bootstrap)
		return
	}

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		bootstrap.Fatal("Usage: say [-no-mixer] <text>")
	}

	cfg, err := config.Load(bootstrap)
	if err != nil {
		bootstrap.Fatal("Invalid configuration", zap.Error(err))
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		bootstrap.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	synth, closeSynth, err := app.NewSynthesizer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create synthesizer", zap.Error(err))
	}
	defer closeSynth()

	var mixer repositories.CaptureMixer = audio.NewAmixer(audio.AmixerConfig{Card: cfg.MixerCard, Control: cfg.MixerControl}, logger)
	if *noMixer {
		mixer = audio.NopMixer{}
	}

	player := audio.NewBeepPlayer(audio.BeepPlayerConfig{OutputFile: cfg.PlaybackOutputFile}, logger)
	arbiter := playback.New(mixer, player, synth, playback.Config{}, logger)

	if err := arbiter.Speak(ctx, text); err != nil {
		logger.Error("Failed to speak", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func printVoices(logger *zap.Logger) {
	_ = godotenv.Load()
	synth, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to create ElevenLabs client", zap.Error(err))
	}
	voices, err := synth.GetAvailableVoices(context.Background())
	if err != nil {
		logger.Fatal("Failed to list voices", zap.Error(err))
	}
	for _, v := range voices {
		fmt.Printf("%s\t%s\t%s\n", v.VoiceID, v.Name, v.Category)
	}
}

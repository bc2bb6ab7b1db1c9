package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const (
	defaultGoogleLanguage = "ru-RU"
	defaultGoogleVoice    = "ru-RU-Wavenet-D"
	defaultGoogleGender   = "MALE"
	defaultGoogleEncoding = "MP3"
)

// GoogleTTSConfig holds configuration for the Google synthesizer
type GoogleTTSConfig struct {
	CredentialsFile string  // Optional: service account JSON, default credentials otherwise
	LanguageCode    string  // Optional: default "ru-RU"
	VoiceName       string  // Optional: default "ru-RU-Wavenet-D"
	Gender          string  // Optional: MALE, FEMALE or NEUTRAL, default MALE
	Encoding        string  // Optional: MP3, LINEAR16 or OGG_OPUS, default MP3
	SpeakingRate    float64 // Optional: 0.25 to 4.0, 0 keeps the service default
}

// GoogleTTS implements TextToSpeech with Google Cloud Text-to-Speech
type GoogleTTS struct {
	client *texttospeech.Client
	voice  *texttospeechpb.VoiceSelectionParams
	audio  *texttospeechpb.AudioConfig
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*GoogleTTS)(nil)

// ValidateGoogleTTSConfig validates the GoogleTTSConfig
func ValidateGoogleTTSConfig(config GoogleTTSConfig) error {
	if config.SpeakingRate != 0 && (config.SpeakingRate < 0.25 || config.SpeakingRate > 4) {
		return fmt.Errorf("speaking rate must be between 0.25 and 4, got %f", config.SpeakingRate)
	}
	if _, err := getSsmlGender(config.Gender); err != nil {
		return err
	}
	if _, err := getAudioEncoding(config.Encoding); err != nil {
		return err
	}
	return nil
}

// NewGoogleTTS creates a Google synthesizer
func NewGoogleTTS(ctx context.Context, config GoogleTTSConfig, logger *zap.Logger) (*GoogleTTS, error) {
	if err := ValidateGoogleTTSConfig(config); err != nil {
		return nil, err
	}

	languageCode := config.LanguageCode
	if languageCode == "" {
		languageCode = defaultGoogleLanguage
		logger.Info("Using default language code", zap.String("languageCode", languageCode))
	}

	voiceName := config.VoiceName
	if voiceName == "" {
		voiceName = defaultGoogleVoice
		logger.Info("Using default voice", zap.String("voiceName", voiceName))
	}

	gender, _ := getSsmlGender(config.Gender)
	encoding, _ := getAudioEncoding(config.Encoding)

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}

	return &GoogleTTS{
		client: client,
		voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         voiceName,
			SsmlGender:   gender,
		},
		audio: &texttospeechpb.AudioConfig{
			AudioEncoding: encoding,
			SpeakingRate:  config.SpeakingRate,
		},
		logger: logger,
	}, nil
}

// Synthesize converts text into one encoded audio payload
func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	g.logger.Info("Converting text to speech",
		zap.Int("length", len(text)),
		zap.String("voice", g.voice.Name))

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice:       g.voice,
		AudioConfig: g.audio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	g.logger.Debug("Received synthesized audio", zap.Int("bytes", len(resp.AudioContent)))
	return resp.AudioContent, nil
}

// Close releases the underlying client
func (g *GoogleTTS) Close() error {
	return g.client.Close()
}

func getSsmlGender(gender string) (texttospeechpb.SsmlVoiceGender, error) {
	switch strings.ToUpper(gender) {
	case "", defaultGoogleGender:
		return texttospeechpb.SsmlVoiceGender_MALE, nil
	case "FEMALE":
		return texttospeechpb.SsmlVoiceGender_FEMALE, nil
	case "NEUTRAL":
		return texttospeechpb.SsmlVoiceGender_NEUTRAL, nil
	default:
		return texttospeechpb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED, fmt.Errorf("unsupported voice gender: %s", gender)
	}
}

func getAudioEncoding(encoding string) (texttospeechpb.AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "", defaultGoogleEncoding:
		return texttospeechpb.AudioEncoding_MP3, nil
	case "LINEAR16", "WAV":
		return texttospeechpb.AudioEncoding_LINEAR16, nil
	case "OGG_OPUS":
		return texttospeechpb.AudioEncoding_OGG_OPUS, nil
	default:
		return texttospeechpb.AudioEncoding_AUDIO_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}

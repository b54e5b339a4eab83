package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"voicetype/internal/audio"
	"voicetype/internal/audio/portaudio"
	"voicetype/internal/config"
	"voicetype/internal/history"
	"voicetype/internal/inserter"
	"voicetype/internal/ports"
	"voicetype/internal/providers/deepgram"
	"voicetype/internal/providers/httpclient"
	"voicetype/internal/providers/openai"
	"voicetype/internal/rules"
	"voicetype/internal/settings"
	"voicetype/internal/status"
	"voicetype/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Status     *status.Manager
	Controller *usecase.DictationController
	Settings   *settings.Store
	History    *history.Store
	Copy       func(text string) error
}

// Options replaces OS-bound adapters. Nil fields build the real ones.
type Options struct {
	Capture  ports.AudioCapture
	Inserter ports.TextInserter
}

// Transcription is the text side of the pipeline, shared by the daemon and one-shot commands.
type Transcription struct {
	Transcriber ports.Transcriber
	Cleaner     ports.TextCleaner
	Rules       *rules.Engine
}

// Build wires all backend dependencies for the current runtime.
func Build(cfg config.Config, opts Options, log *zap.SugaredLogger) (*Services, error) {
	prefs := settings.Open(cfg.Paths.Settings, log)
	if cfg.Audio.Backend == config.BackendPortAudio {
		if err := prefs.Migrate(portaudio.DeviceByIndex); err != nil {
			log.Warnw("settings migration failed", "error", err)
		}
	}

	store, err := history.Open(cfg.Paths.History, cfg.History.Limit)
	if err != nil {
		return nil, err
	}

	text, err := BuildTranscription(cfg, log)
	if err != nil {
		return nil, err
	}

	capture := opts.Capture
	if capture == nil {
		capture = newCapture(cfg, log)
	}

	copyText := inserter.CopyToClipboard
	insert := opts.Inserter
	if insert == nil {
		ins, err := inserter.New(log)
		if err != nil {
			return nil, fmt.Errorf("text insertion unavailable: %w", err)
		}
		insert = ins
		copyText = ins.Copy
	}

	usecase.RemoveStaleRecordings(cfg.Paths.TempDir, log)

	manager := status.NewManager(log)
	deps := usecase.Dependencies{
		Capture:     capture,
		Transcriber: text.Transcriber,
		Cleaner:     text.Cleaner,
		Rules:       text.Rules,
		History:     store,
		Inserter:    insert,
		Preferences: prefs,
	}
	controller := usecase.NewDictationController(deps, manager, usecase.Config{
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		ChunkSize:       cfg.Session.ChunkSize,
		TempDir:         cfg.Paths.TempDir,
		PreferredDevice: cfg.Audio.Backend == config.BackendPortAudio,
	}, log)

	return &Services{
		Config:     cfg,
		Status:     manager,
		Controller: controller,
		Settings:   prefs,
		History:    store,
		Copy:       copyText,
	}, nil
}

// BuildTranscription builds the transcriber for the configured provider, the OpenAI cleanup
// client when an OpenAI key is present, and the rules engine.
func BuildTranscription(cfg config.Config, log *zap.SugaredLogger) (Transcription, error) {
	client, err := httpclient.New(httpclient.Options{
		Timeout:            cfg.HTTP.Timeout,
		EnableHTTP2:        cfg.HTTP.EnableHTTP2,
		InsecureSkipVerify: !cfg.HTTP.VerifySSL,
	})
	if err != nil {
		return Transcription{}, err
	}

	engine, err := rules.New(rules.Options{
		Path:      cfg.Rules.Path,
		Inline:    cfg.Rules.Inline,
		MaxPasses: cfg.Rules.IterationLimit,
		Tidy:      cfg.Rules.Tidy,
	})
	if err != nil {
		return Transcription{}, err
	}
	log.Debugw("rules loaded", "path", cfg.Rules.Path, "count", engine.Len())

	oa := openai.Config{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		Language:           cfg.OpenAI.Language,
		Prompt:             cfg.OpenAI.Prompt,
		CleanupModel:       cfg.OpenAI.CleanupModel,
		CleanupPrompt:      cfg.OpenAI.CleanupPrompt,
		MaxRetries:         cfg.OpenAI.MaxRetries,
		HTTPClient:         client,
	}

	out := Transcription{Rules: engine}
	switch cfg.Provider {
	case config.ProviderDeepgram:
		out.Transcriber, err = deepgram.New(deepgram.Config{
			APIKey:          cfg.Deepgram.APIKey,
			APIBaseURL:      cfg.Deepgram.APIBaseURL,
			Model:           cfg.Deepgram.Model,
			Language:        cfg.Deepgram.Language,
			SmartFormat:     cfg.Deepgram.SmartFormat,
			Mode:            cfg.Deepgram.Mode,
			MaxRetries:      cfg.Deepgram.MaxRetries,
			RetryBaseDelay:  cfg.Deepgram.RetryBaseDelay,
			ChunkSize:       cfg.Session.ChunkSize,
			FinalizeTimeout: cfg.Deepgram.FinalizeTimeout,
			HTTPClient:      client,
		}, log)
	default:
		out.Transcriber, err = openai.NewTranscriber(oa, log)
	}
	if err != nil {
		return Transcription{}, fmt.Errorf("%s transcriber: %w", cfg.Provider, err)
	}

	if cfg.OpenAI.APIKey == "" {
		log.Infow("no OpenAI key, transcript cleanup disabled")
		return out, nil
	}
	cleaner, err := openai.NewCleaner(oa)
	if err != nil {
		return Transcription{}, fmt.Errorf("cleanup client: %w", err)
	}
	out.Cleaner = cleaner
	return out, nil
}

func newCapture(cfg config.Config, log *zap.SugaredLogger) ports.AudioCapture {
	if cfg.Audio.Backend == config.BackendFFMPEG {
		return audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, log)
	}
	return portaudio.NewCapture(log)
}

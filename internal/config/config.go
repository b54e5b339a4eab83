package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "voicetype"

const (
	ProviderOpenAI   = "openai"
	ProviderDeepgram = "deepgram"

	BackendPortAudio = "portaudio"
	BackendFFMPEG    = "ffmpeg"
)

// Config stores runtime configuration.
type Config struct {
	Provider      string              `mapstructure:"provider"`
	Debug         bool                `mapstructure:"debug"`
	OpenAI        OpenAIConfig        `mapstructure:"openai"`
	Deepgram      DeepgramConfig      `mapstructure:"deepgram"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Rules         RulesConfig         `mapstructure:"rules"`
	Session       SessionConfig       `mapstructure:"session"`
	Hotkey        HotkeyConfig        `mapstructure:"hotkey"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Paths         PathsConfig         `mapstructure:"paths"`
	History       HistoryConfig       `mapstructure:"history"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	Language           string `mapstructure:"language"`
	Prompt             string `mapstructure:"prompt"`
	CleanupModel       string `mapstructure:"cleanup_model"`
	CleanupPrompt      string `mapstructure:"cleanup_prompt"`
	MaxRetries         int    `mapstructure:"max_retries"`
}

type DeepgramConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	APIBaseURL      string        `mapstructure:"api_base"`
	Model           string        `mapstructure:"model"`
	Language        string        `mapstructure:"language"`
	SmartFormat     bool          `mapstructure:"smart_format"`
	Mode            string        `mapstructure:"mode"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout"`
}

type AudioConfig struct {
	Backend         string `mapstructure:"backend"`
	RecorderCommand string `mapstructure:"ffmpeg_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
}

type RulesConfig struct {
	Path           string   `mapstructure:"path"`
	Inline         []string `mapstructure:"inline"`
	IterationLimit int      `mapstructure:"iteration_limit"`
	Tidy           bool     `mapstructure:"tidy"`
}

type SessionConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

type HotkeyConfig struct {
	Toggle string `mapstructure:"toggle"`
	Cancel string `mapstructure:"cancel"`
}

type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	EnableHTTP2 bool          `mapstructure:"enable_http2"`
	VerifySSL   bool          `mapstructure:"verify_ssl"`
}

type PathsConfig struct {
	Settings string `mapstructure:"settings"`
	History  string `mapstructure:"history"`
	TempDir  string `mapstructure:"temp_dir"`
}

type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

type NotificationsConfig struct {
	Errors  bool `mapstructure:"errors"`
	Success bool `mapstructure:"success"`
}

// Options selects where configuration is read from.
type Options struct {
	// File is an explicit YAML file. When empty, config.yaml under the XDG config directory
	// is read if it exists.
	File string
	// EnvFile is preloaded into the environment without overriding variables already set.
	// Defaults to ".env" in the working directory.
	EnvFile string
}

// DefaultFile is config.yaml under the XDG config directory.
func DefaultFile() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// Load resolves configuration: defaults, then the YAML file, then the environment.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	file := opts.File
	explicit := file != ""
	if !explicit {
		file = DefaultFile()
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	normalize(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("debug", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.language", "")
	v.SetDefault("openai.prompt", "")
	v.SetDefault("openai.cleanup_model", "gpt-4o-mini")
	v.SetDefault("openai.cleanup_prompt", "")
	v.SetDefault("openai.max_retries", 2)

	v.SetDefault("deepgram.api_key", "")
	v.SetDefault("deepgram.api_base", "https://api.deepgram.com/v1")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "")
	v.SetDefault("deepgram.smart_format", true)
	v.SetDefault("deepgram.mode", "prerecorded")
	v.SetDefault("deepgram.max_retries", 3)
	v.SetDefault("deepgram.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("deepgram.finalize_timeout", 4*time.Second)

	v.SetDefault("audio.backend", BackendPortAudio)
	v.SetDefault("audio.ffmpeg_command", "ffmpeg")
	v.SetDefault("audio.input_format", defaultInputFormat())
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 22050)
	v.SetDefault("audio.channels", 1)

	v.SetDefault("rules.path", filepath.Join(xdg.ConfigHome, appName, "substitutions.rules"))
	v.SetDefault("rules.inline", []string{})
	v.SetDefault("rules.iteration_limit", 30)
	v.SetDefault("rules.tidy", true)

	v.SetDefault("session.chunk_size", 4096)

	v.SetDefault("hotkey.toggle", "f9")
	v.SetDefault("hotkey.cancel", "esc")

	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.enable_http2", true)
	v.SetDefault("http.verify_ssl", true)

	v.SetDefault("paths.settings", filepath.Join(xdg.ConfigHome, appName, "settings.json"))
	v.SetDefault("paths.history", filepath.Join(xdg.DataHome, appName, "history.json"))
	v.SetDefault("paths.temp_dir", "")

	v.SetDefault("history.limit", 10)

	v.SetDefault("notifications.errors", true)
	v.SetDefault("notifications.success", false)
}

// bindEnv maps keys to VOICETYPE_<SECTION>_<KEY>, plus the provider variables people already
// have exported.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai.api_key", "VOICETYPE_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "VOICETYPE_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	_ = v.BindEnv("deepgram.api_key", "VOICETYPE_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("deepgram.api_base", "VOICETYPE_DEEPGRAM_API_BASE", "DEEPGRAM_API_BASE")
	_ = v.BindEnv("deepgram.model", "VOICETYPE_DEEPGRAM_MODEL", "DEEPGRAM_MODEL")
	_ = v.BindEnv("deepgram.language", "VOICETYPE_DEEPGRAM_LANGUAGE", "DEEPGRAM_LANGUAGE")
	_ = v.BindEnv("rules.path", "VOICETYPE_RULES_PATH", "VOICETYPE_RULES_FILE")
}

// loadEnvFile exports KEY=VALUE pairs from path. A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Audio.Backend = strings.ToLower(strings.TrimSpace(cfg.Audio.Backend))
	cfg.Deepgram.Mode = strings.ToLower(strings.TrimSpace(cfg.Deepgram.Mode))
	cfg.OpenAI.APIKey = strings.TrimSpace(cfg.OpenAI.APIKey)
	cfg.Deepgram.APIKey = strings.TrimSpace(cfg.Deepgram.APIKey)

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 22050
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = 10
	}
}

// Validate rejects values the runtime cannot work with.
func Validate(cfg Config) error {
	switch cfg.Provider {
	case ProviderOpenAI, ProviderDeepgram:
	default:
		return fmt.Errorf("invalid provider %q (allowed: %s, %s)", cfg.Provider, ProviderOpenAI, ProviderDeepgram)
	}
	switch cfg.Audio.Backend {
	case BackendPortAudio, BackendFFMPEG:
	default:
		return fmt.Errorf("invalid audio backend %q (allowed: %s, %s)", cfg.Audio.Backend, BackendPortAudio, BackendFFMPEG)
	}
	switch cfg.Deepgram.Mode {
	case "prerecorded", "streaming":
	default:
		return fmt.Errorf("invalid deepgram mode %q (allowed: prerecorded, streaming)", cfg.Deepgram.Mode)
	}
	if cfg.Audio.Channels > 8 {
		return fmt.Errorf("invalid channels: %d (allowed 1..8)", cfg.Audio.Channels)
	}
	if strings.TrimSpace(cfg.Hotkey.Toggle) == "" {
		return errors.New("hotkey.toggle must not be empty")
	}
	return nil
}

// defaultInputFormat is the ffmpeg input device family for the host OS.
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "windows":
		return "dshow"
	case "darwin":
		return "avfoundation"
	default:
		return "pulse"
	}
}

// Package openai transcribes recordings with Whisper and tidies transcripts with a chat model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const (
	// MaxUploadBytes is the audio upload limit of the transcription endpoint.
	MaxUploadBytes = 25 << 20

	defaultTranscriptionModel = "whisper-1"
	defaultCleanupModel       = "gpt-4o-mini"
)

// DefaultCleanupPrompt instructs the model to fix the transcript without rewriting it.
const DefaultCleanupPrompt = `You clean up dictated text. Fix punctuation, capitalization and obvious ` +
	`transcription mistakes, and remove filler words such as "um" and "uh". Keep the wording, ` +
	`language and meaning. Reply with the cleaned text only.`

var (
	errMissingKey = errors.New("OPENAI_API_KEY is not configured")
	// ErrFileTooLarge is returned for recordings above MaxUploadBytes.
	ErrFileTooLarge = errors.New("recording exceeds the 25 MB upload limit")
)

// Config controls the OpenAI client.
type Config struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	Language           string
	Prompt             string
	CleanupModel       string
	CleanupPrompt      string
	MaxRetries         int
	HTTPClient         *http.Client
}

func newClient(cfg Config) (openaisdk.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return openaisdk.Client{}, errMissingKey
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return openaisdk.NewClient(opts...), nil
}

// Transcriber implements ports.Transcriber with the audio transcription endpoint.
type Transcriber struct {
	client   openaisdk.Client
	model    string
	language string
	prompt   string
	log      *zap.SugaredLogger
}

func NewTranscriber(cfg Config, log *zap.SugaredLogger) (*Transcriber, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.TranscriptionModel
	if model == "" {
		model = defaultTranscriptionModel
	}
	return &Transcriber{client: client, model: model, language: cfg.Language, prompt: cfg.Prompt, log: log}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("stat recording: %w", err)
	}
	if info.Size() > MaxUploadBytes {
		return "", fmt.Errorf("%w (%d bytes)", ErrFileTooLarge, info.Size())
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	params := openaisdk.AudioTranscriptionNewParams{
		File:  f,
		Model: openaisdk.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = openaisdk.String(t.language)
	}
	if t.prompt != "" {
		params.Prompt = openaisdk.String(t.prompt)
	}

	res, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", describe("transcription", err)
	}
	t.log.Debugw("transcription received", "model", t.model, "chars", len(res.Text))
	return strings.TrimSpace(res.Text), nil
}

// Cleaner implements ports.TextCleaner with a chat completion.
type Cleaner struct {
	client openaisdk.Client
	model  string
	prompt string
}

func NewCleaner(cfg Config) (*Cleaner, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.CleanupModel
	if model == "" {
		model = defaultCleanupModel
	}
	prompt := cfg.CleanupPrompt
	if prompt == "" {
		prompt = DefaultCleanupPrompt
	}
	return &Cleaner{client: client, model: model, prompt: prompt}, nil
}

func (c *Cleaner) Clean(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	completion, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(c.prompt),
			openaisdk.UserMessage(text),
		},
		Temperature: openaisdk.Float(0),
	})
	if err != nil {
		return "", describe("cleanup", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("cleanup returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// describe keeps the HTTP status of API errors in the message.
func describe(stage string, err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai %s failed with status %d: %w", stage, apiErr.StatusCode, err)
	}
	return fmt.Errorf("openai %s failed: %w", stage, err)
}

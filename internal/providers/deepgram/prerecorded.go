package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryExhaustedError reports that every upload attempt failed.
type RetryExhaustedError struct {
	Attempts   int
	MaxRetry   int
	LastStatus int
	LastBody   string
	Err        error
}

func (e *RetryExhaustedError) Error() string {
	detail := e.LastBody
	if e.Err != nil {
		detail = e.Err.Error()
	}
	if e.LastStatus != 0 {
		return fmt.Sprintf("deepgram: exceeded max retries (%d), last status %d: %s", e.MaxRetry, e.LastStatus, detail)
	}
	return fmt.Sprintf("deepgram: exceeded max retries (%d): %s", e.MaxRetry, detail)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// PrerecordedTranscriber uploads a finished WAV to /listen.
type PrerecordedTranscriber struct {
	cfg Config
	log *zap.SugaredLogger
}

func (p *PrerecordedTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read recording: %w", err)
	}
	endpoint, err := buildPrerecordedURL(p.cfg)
	if err != nil {
		return "", err
	}

	delay := p.cfg.RetryBaseDelay
	last := &RetryExhaustedError{MaxRetry: p.cfg.MaxRetries}
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		last.Attempts = attempt
		text, status, body, err := p.upload(ctx, endpoint, audio)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		last.LastStatus, last.LastBody, last.Err = status, body, err
		if !retryable(status) {
			return "", fmt.Errorf("deepgram transcription failed: %w", err)
		}
		p.log.Warnw("deepgram upload failed", "attempt", attempt, "status", status, "error", err)

		if attempt < p.cfg.MaxRetries && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			}
			delay *= 2
		}
	}
	return "", last
}

func (p *PrerecordedTranscriber) upload(ctx context.Context, endpoint string, audio []byte) (string, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", 0, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body := strings.TrimSpace(string(payload))
		return "", resp.StatusCode, body, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var response deepgramResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return "", resp.StatusCode, "", fmt.Errorf("decode response: %w", err)
	}
	return extractTranscript(response), resp.StatusCode, "", nil
}

// retryable is true for transport errors (status 0), throttling and server errors.
func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}

func buildPrerecordedURL(cfg Config) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	if listenURL.Scheme != "http" && listenURL.Scheme != "https" {
		return "", errors.New("invalid Deepgram API base URL: scheme must be http or https")
	}
	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

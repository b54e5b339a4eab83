package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voicetype/internal/domain"
	"voicetype/internal/ports"
)

var errEmptyTranscript = errors.New("no speech detected")

// stageError tags a pipeline failure with the stage that produced it.
type stageError struct {
	code   domain.ErrorCode
	reason domain.StatusReason
	retry  bool
	err    error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}

// pipeline turns a finished recording into inserted text.
type pipeline struct {
	transcriber ports.Transcriber
	cleaner     ports.TextCleaner
	rules       ports.RulesEngine
	history     ports.HistoryStore
	inserter    ports.TextInserter
	prefs       ports.Preferences
	log         *zap.SugaredLogger
}

// Run executes transcribe → clean → rules → history → insert. Cleanup and rules failures fall
// back to the previous text; history failures are logged.
func (p pipeline) Run(ctx context.Context, rec domain.Recording) (domain.Transcript, error) {
	raw, err := p.transcriber.Transcribe(ctx, rec.Path)
	if err != nil {
		return domain.Transcript{}, &stageError{code: domain.ErrorCodeTranscription, reason: domain.ReasonTranscriptionFailed, retry: true, err: err}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Transcript{}, errEmptyTranscript
	}

	result := domain.Transcript{Raw: raw, Final: raw}
	if p.cleaner != nil && p.prefs != nil && p.prefs.CleanTranscription() {
		cleaned, err := p.cleaner.Clean(ctx, raw)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return domain.Transcript{}, ctx.Err()
			}
			p.log.Warnw("cleanup failed, using raw transcript", "code", domain.ErrorCodeCleanup, "error", err)
		case strings.TrimSpace(cleaned) != "":
			result.Final = strings.TrimSpace(cleaned)
			result.Cleaned = true
		}
	}

	if p.rules != nil {
		transformed, err := p.rules.Apply(result.Final)
		if err != nil {
			p.log.Warnw("rules failed, keeping transcript", "code", domain.ErrorCodeRules, "error", err)
		} else {
			result.Final = transformed
		}
	}

	if ctx.Err() != nil {
		return domain.Transcript{}, ctx.Err()
	}

	if p.history != nil {
		if err := p.history.Append(result.Final); err != nil {
			p.log.Warnw("history append failed", "code", domain.ErrorCodeHistory, "error", err)
		}
	}
	if p.inserter == nil {
		return result, nil
	}
	if err := p.inserter.Insert(ctx, result.Final); err != nil {
		return result, &stageError{code: domain.ErrorCodeInsert, reason: domain.ReasonInsertFailed, err: err}
	}
	result.Inserted = true
	return result, nil
}

// TranscribeFile runs an audio file through transcription, cleanup and rules. The text is
// inserted only when deps carries an Inserter.
func TranscribeFile(ctx context.Context, path string, deps Dependencies, log *zap.SugaredLogger) (domain.Transcript, error) {
	p := pipeline{
		transcriber: deps.Transcriber,
		cleaner:     deps.Cleaner,
		rules:       deps.Rules,
		history:     deps.History,
		inserter:    deps.Inserter,
		prefs:       deps.Preferences,
		log:         log,
	}
	return p.Run(ctx, domain.Recording{Path: path})
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicetype/internal/audio"
	"voicetype/internal/domain"
	"voicetype/internal/ports"
	"voicetype/internal/status"
)

var (
	ErrNoActiveSession  = errors.New("no active recording session")
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrBusy             = errors.New("transcription in progress")
	ErrNothingToRetry   = errors.New("no recording to retry")
)

// Config controls capture and temp file placement.
type Config struct {
	Audio     ports.AudioConfig
	ChunkSize int
	// TempDir holds in-flight recordings. Empty means os.TempDir().
	TempDir string
	// PreferredDevice lets a microphone chosen through Preferences override Audio.InputDevice.
	PreferredDevice bool
}

// Dependencies are the ports the controller drives. Cleaner, Rules and History may be nil.
type Dependencies struct {
	Capture     ports.AudioCapture
	Transcriber ports.Transcriber
	Cleaner     ports.TextCleaner
	Rules       ports.RulesEngine
	History     ports.HistoryStore
	Inserter    ports.TextInserter
	Preferences ports.Preferences
}

// DictationController orchestrates toggle recording, background transcription, retry and
// status propagation. At most one recording and one pipeline run are active at a time.
type DictationController struct {
	capture  ports.AudioCapture
	prefs    ports.Preferences
	pipeline pipeline
	status   *status.Manager
	cfg      Config
	log      *zap.SugaredLogger
	newID    func() string
	now      func() time.Time

	mu        sync.Mutex
	recording *recordingSession
	stopping  *recordingSession
	worker    *worker
	retained  *domain.Recording

	wg sync.WaitGroup
}

func NewDictationController(deps Dependencies, statusManager *status.Manager, cfg Config, log *zap.SugaredLogger) *DictationController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	return &DictationController{
		capture: deps.Capture,
		prefs:   deps.Preferences,
		pipeline: pipeline{
			transcriber: deps.Transcriber,
			cleaner:     deps.Cleaner,
			rules:       deps.Rules,
			history:     deps.History,
			inserter:    deps.Inserter,
			prefs:       deps.Preferences,
			log:         log,
		},
		status: statusManager,
		cfg:    cfg,
		log:    log,
		newID:  recordingID,
		now:    time.Now,
	}
}

func recordingID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Toggle starts a recording from Idle or Error and stops it while Recording.
func (c *DictationController) Toggle(ctx context.Context) error {
	switch c.status.Current() {
	case domain.StatusRecording:
		return c.Stop(ctx)
	case domain.StatusProcessing:
		return ErrBusy
	default:
		return c.Start(ctx)
	}
}

// Recording reports whether a recording session is active.
func (c *DictationController) Recording() bool {
	return c.status.Current() == domain.StatusRecording
}

// Start opens the microphone and begins writing a temp recording. Any recording retained for
// retry is dropped.
func (c *DictationController) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording != nil {
		return ErrAlreadyRecording
	}
	if !c.status.Can(status.EventRecord) {
		return ErrBusy
	}
	c.dropRetained()

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := c.capture.Start(sessionCtx, c.audioConfig())
	if err != nil {
		cancel()
		c.fail(domain.ReasonCaptureFailed, domain.ErrorCodeCapture, err, false)
		return fmt.Errorf("start capture: %w", err)
	}

	path := recordingPath(c.tempDir(), c.newID())
	wav, err := audio.CreateWAV(path, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	if err != nil {
		_ = session.Stop()
		cancel()
		c.fail(domain.ReasonCaptureFailed, domain.ErrorCodeCapture, err, false)
		return err
	}

	rec := &recordingSession{
		audio:     session,
		wav:       wav,
		meter:     audio.NewMeter(c.silenceTimeout()),
		startedAt: c.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if err := c.status.Fire(context.Background(), status.Transition{
		Event:   status.EventRecord,
		Reason:  domain.ReasonRecordingStarted,
		Message: status.ReasonMessage(domain.ReasonRecordingStarted),
	}); err != nil {
		_ = session.Stop()
		cancel()
		wav.Discard()
		return err
	}
	c.recording = rec

	c.log.Infow("recording started", "path", path)
	go pumpRecording(rec, c.cfg.ChunkSize, c.status.PublishLevel, func() { c.scheduleAutoStop(rec) })
	return nil
}

// Stop ends the active recording. Short or silent recordings are discarded with a warning;
// anything else is transcribed in the background.
func (c *DictationController) Stop(ctx context.Context) error {
	c.mu.Lock()
	rec := c.recording
	if rec == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	c.recording = nil
	c.stopping = rec
	c.mu.Unlock()

	recording, analysis, err := c.finishCapture(rec)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopping = nil

	if rec.canceled {
		if err == nil {
			_ = os.Remove(recording.Path)
		}
		c.log.Infow("recording canceled while stopping")
		c.fire(status.Transition{
			Event:   status.EventDiscard,
			Reason:  domain.ReasonRecordingDiscarded,
			Message: status.ReasonMessage(domain.ReasonRecordingDiscarded),
		})
		return nil
	}
	if err != nil {
		c.fail(domain.ReasonCaptureFailed, domain.ErrorCodeCapture, err, false)
		return err
	}
	if !analysis.Valid {
		_ = os.Remove(recording.Path)
		reason, message := analysis.Reason, analysis.Detail
		if rec.meter.AutoStopped() {
			reason, message = domain.ReasonSilenceAutoStop, status.ReasonMessage(domain.ReasonSilenceAutoStop)
		}
		c.log.Infow("recording skipped", "reason", reason, "detail", analysis.Detail)
		c.fire(status.Transition{Event: status.EventSkip, Reason: reason, Message: message})
		return nil
	}

	c.log.Infow("recording finished", "duration", recording.Duration, "rms", analysis.RMS)
	c.fire(status.Transition{
		Event:   status.EventProcess,
		Reason:  domain.ReasonTranscribing,
		Message: status.ReasonMessage(domain.ReasonTranscribing),
	})
	c.startWorker(recording)
	return nil
}

// Cancel discards an active recording, abandons a running transcription or dismisses an
// error. The retained recording is dropped on dismiss.
func (c *DictationController) Cancel() error {
	c.mu.Lock()
	if rec := c.recording; rec != nil {
		c.recording = nil
		c.mu.Unlock()

		_ = rec.audio.Stop()
		<-rec.done
		rec.cancel()
		rec.wav.Discard()

		c.mu.Lock()
		defer c.mu.Unlock()
		c.fire(status.Transition{
			Event:   status.EventDiscard,
			Reason:  domain.ReasonRecordingDiscarded,
			Message: status.ReasonMessage(domain.ReasonRecordingDiscarded),
		})
		return nil
	}
	defer c.mu.Unlock()

	// Stop is draining capture; it discards instead of transcribing.
	if rec := c.stopping; rec != nil {
		rec.canceled = true
		return nil
	}

	if w := c.worker; w != nil {
		c.worker = nil
		w.cancel()
		c.fire(status.Transition{
			Event:   status.EventDiscard,
			Reason:  domain.ReasonProcessingCanceled,
			Message: status.ReasonMessage(domain.ReasonProcessingCanceled),
		})
		return nil
	}

	if c.status.Current() == domain.StatusError {
		c.dropRetained()
		c.fire(status.Transition{Event: status.EventDismiss, Reason: domain.ReasonErrorDismissed})
		return nil
	}
	return ErrNoActiveSession
}

// Retry transcribes the retained recording again without re-recording.
func (c *DictationController) Retry(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retained == nil || !c.status.Can(status.EventRetry) {
		return ErrNothingToRetry
	}
	rec := *c.retained
	c.retained = nil

	c.log.Infow("retrying transcription", "path", rec.Path)
	c.fire(status.Transition{
		Event:   status.EventRetry,
		Reason:  domain.ReasonRetrying,
		Message: status.ReasonMessage(domain.ReasonRetrying),
	})
	c.startWorker(rec)
	return nil
}

// CanRetry reports whether a failed recording is retained.
func (c *DictationController) CanRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retained != nil
}

// Status returns the most recent status update.
func (c *DictationController) Status() domain.StatusUpdate {
	return c.status.Snapshot()
}

// Wait blocks until background transcriptions and auto-stops have finished.
func (c *DictationController) Wait() {
	c.wg.Wait()
}

// Close abandons any in-flight work and removes temp recordings.
func (c *DictationController) Close() {
	if err := c.Cancel(); err != nil && !errors.Is(err, ErrNoActiveSession) {
		c.log.Warnw("cancel on close failed", "error", err)
	}
	c.Wait()

	c.mu.Lock()
	c.dropRetained()
	c.mu.Unlock()
}

func (c *DictationController) finishCapture(rec *recordingSession) (domain.Recording, domain.Analysis, error) {
	stopErr := rec.audio.Stop()
	<-rec.done
	rec.cancel()

	path := rec.wav.Path()
	if err := rec.wav.Close(); err != nil {
		_ = os.Remove(path)
		return domain.Recording{}, domain.Analysis{}, err
	}
	if rec.pumpErr != nil {
		_ = os.Remove(path)
		return domain.Recording{}, domain.Analysis{}, rec.pumpErr
	}
	if stopErr != nil {
		c.log.Warnw("failed to stop audio capture cleanly", "code", domain.ErrorCodeCapture, "error", stopErr)
	}

	analysis := audio.Analyze(path)
	if analysis.Reason == domain.ReasonCaptureFailed {
		_ = os.Remove(path)
		return domain.Recording{}, analysis, errors.New(analysis.Detail)
	}
	return domain.Recording{Path: path, StartedAt: rec.startedAt, Duration: analysis.Duration}, analysis, nil
}

// scheduleAutoStop stops rec on a separate goroutine unless it is no longer current.
func (c *DictationController) scheduleAutoStop(rec *recordingSession) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.mu.Lock()
		current := c.recording == rec
		c.mu.Unlock()
		if !current {
			return
		}

		c.log.Infow("no speech detected, stopping recording")
		if err := c.Stop(context.Background()); err != nil && !errors.Is(err, ErrNoActiveSession) {
			c.log.Warnw("auto stop failed", "error", err)
		}
	}()
}

// startWorker runs the pipeline in the background. c.mu must be held.
func (c *DictationController) startWorker(rec domain.Recording) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel}
	c.worker = w

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		result, err := c.pipeline.Run(ctx, rec)
		c.finishWorker(w, rec, result, err)
	}()
}

func (c *DictationController) finishWorker(w *worker, rec domain.Recording, result domain.Transcript, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker != w {
		c.log.Debugw("discarding canceled transcription", "path", rec.Path)
		_ = os.Remove(rec.Path)
		return
	}
	c.worker = nil

	var stage *stageError
	switch {
	case err == nil:
		_ = os.Remove(rec.Path)
		c.log.Infow("text inserted", "chars", len(result.Final), "cleaned", result.Cleaned)
		c.fire(status.Transition{
			Event:   status.EventComplete,
			Reason:  domain.ReasonTextInserted,
			Message: status.ReasonMessage(domain.ReasonTextInserted),
		})
	case errors.Is(err, errEmptyTranscript):
		_ = os.Remove(rec.Path)
		c.fire(status.Transition{
			Event:   status.EventComplete,
			Reason:  domain.ReasonNoSpeech,
			Message: status.ReasonMessage(domain.ReasonNoSpeech),
		})
	case errors.As(err, &stage) && stage.retry:
		retained := rec
		c.retained = &retained
		c.fail(stage.reason, stage.code, stage.err, true)
	case errors.As(err, &stage):
		_ = os.Remove(rec.Path)
		c.fail(stage.reason, stage.code, stage.err, false)
	default:
		_ = os.Remove(rec.Path)
		c.fail(domain.ReasonTranscriptionFailed, domain.ErrorCodeTranscription, err, false)
	}
}

// fail moves to Error. c.mu must be held.
func (c *DictationController) fail(reason domain.StatusReason, code domain.ErrorCode, err error, retry bool) {
	c.log.Errorw("dictation failed", "code", code, "reason", reason, "error", err)
	message := status.ReasonMessage(reason)
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	c.fire(status.Transition{Event: status.EventFail, Reason: reason, Message: message, RetryAvailable: retry})
}

func (c *DictationController) fire(t status.Transition) {
	if err := c.status.Fire(context.Background(), t); err != nil {
		c.log.Warnw("status transition rejected", "event", t.Event, "error", err)
	}
}

// dropRetained deletes the recording kept for retry. c.mu must be held.
func (c *DictationController) dropRetained() {
	if c.retained == nil {
		return
	}
	_ = os.Remove(c.retained.Path)
	c.retained = nil
}

func (c *DictationController) silenceTimeout() time.Duration {
	if c.prefs == nil {
		return 0
	}
	return c.prefs.SilenceTimeout()
}

func (c *DictationController) audioConfig() ports.AudioConfig {
	cfg := c.cfg.Audio
	if !c.cfg.PreferredDevice {
		return cfg
	}
	if sel, ok := c.prefs.(ports.DeviceSelector); ok {
		if id, found := sel.SelectedMicrophone(); found {
			cfg.InputDevice = id.Name
		}
	}
	return cfg
}

func (c *DictationController) tempDir() string {
	if c.cfg.TempDir != "" {
		return c.cfg.TempDir
	}
	return os.TempDir()
}

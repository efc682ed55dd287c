package mixer

import (
	"context"
	"log/slog"
	"strconv"

	"vmix-remote/internal/platform/metrics"
)

// Mixer function names.
const (
	FnCut             = "Cut"
	FnAuto            = "Auto"
	FnFade            = "Fade"
	FnPreviewInput    = "PreviewInput"
	FnCutDirect       = "CutDirect"
	FnAudioOn         = "AudioOn"
	FnAudioOff        = "AudioOff"
	FnSetVolume       = "SetVolume"
	FnMasterAudioOn   = "MasterAudioOn"
	FnMasterAudioOff  = "MasterAudioOff"
	FnSetMasterVolume = "SetMasterVolume"
	fnOverlayPrefix   = "OverlayInput"
)

// MaxOverlay is the highest overlay channel the mixer exposes.
const MaxOverlay = 4

// FunctionCaller sends one function call to the mixer.
type FunctionCaller interface {
	Call(ctx context.Context, function string, params Params) error
}

// Converger runs a refresh that observes the mixer after a command.
type Converger interface {
	Converge(ctx context.Context)
}

// Dispatcher turns operator intents into mixer function calls. It never
// edits state itself: failures go to the Reconciler's lastError, successes
// are followed by one refresh.
type Dispatcher struct {
	caller  FunctionCaller
	rec     *Reconciler
	conv    Converger
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher returns a Dispatcher. Metrics may be nil.
func NewDispatcher(caller FunctionCaller, rec *Reconciler, conv Converger, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{caller: caller, rec: rec, conv: conv, log: log, metrics: m}
}

// Dispatch sends function with params. On failure the error is recorded in
// lastError and returned; connectivity is left to the next refresh. On
// success one refresh runs after the response has been observed.
func (d *Dispatcher) Dispatch(ctx context.Context, function string, params Params) error {
	err := d.caller.Call(ctx, function, params)
	if d.metrics != nil {
		d.metrics.ObserveCommand(function, err)
	}
	if err != nil {
		d.log.Warn("mixer function failed",
			slog.String("function", function),
			slog.String("error", err.Error()))
		d.rec.RecordCommandError(err)
		return err
	}

	d.log.Debug("mixer function sent", slog.String("function", function))
	// The follow-up refresh belongs to the mixer link, not to the caller.
	d.conv.Converge(context.WithoutCancel(ctx))
	return nil
}

// Take cuts Preview to Program.
func (d *Dispatcher) Take(ctx context.Context) error {
	return d.Dispatch(ctx, FnCut, nil)
}

// Auto runs the default transition.
func (d *Dispatcher) Auto(ctx context.Context) error {
	return d.Dispatch(ctx, FnAuto, nil)
}

// Fade crossfades Preview to Program.
func (d *Dispatcher) Fade(ctx context.Context) error {
	return d.Dispatch(ctx, FnFade, nil)
}

// SetPreview stages in on Preview.
func (d *Dispatcher) SetPreview(ctx context.Context, in InputSnapshot) error {
	return d.Dispatch(ctx, FnPreviewInput, Params{"Input": in.Identity()})
}

// SetProgram cuts in directly to Program.
func (d *Dispatcher) SetProgram(ctx context.Context, in InputSnapshot) error {
	return d.Dispatch(ctx, FnCutDirect, Params{"Input": in.Identity()})
}

// ToggleAudio unmutes a muted channel and mutes an unmuted one.
func (d *Dispatcher) ToggleAudio(ctx context.Context, ch AudioChannel) error {
	fn := FnAudioOff
	if ch.Muted {
		fn = FnAudioOn
	}
	return d.Dispatch(ctx, fn, Params{"Input": ch.Key})
}

// SetVolume sets a channel's volume (0-100).
func (d *Dispatcher) SetVolume(ctx context.Context, ch AudioChannel, value float64) error {
	return d.Dispatch(ctx, FnSetVolume, Params{"Input": ch.Key, "Value": formatValue(value)})
}

// ToggleMasterMute flips the master mute based on the current snapshot.
func (d *Dispatcher) ToggleMasterMute(ctx context.Context) error {
	fn := FnMasterAudioOff
	if d.rec.Snapshot().Audio.MasterMute {
		fn = FnMasterAudioOn
	}
	return d.Dispatch(ctx, fn, nil)
}

// SetMasterVolume sets the master volume (0-100).
func (d *Dispatcher) SetMasterVolume(ctx context.Context, value float64) error {
	return d.Dispatch(ctx, FnSetMasterVolume, Params{"Value": formatValue(value)})
}

// ToggleOverlay toggles overlay channel index (1..MaxOverlay). The mixer
// encodes the index in the function name.
func (d *Dispatcher) ToggleOverlay(ctx context.Context, index int) error {
	if index < 1 || index > MaxOverlay {
		return ErrInvalidOverlay
	}
	return d.Dispatch(ctx, fnOverlayPrefix+strconv.Itoa(index), nil)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

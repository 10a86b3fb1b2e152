// Package engine implements the resolution and convergence core: it turns
// loosely-specified chain-building instructions into exact track, device and
// parameter references and exact backing values against a live host object
// graph.
//
// The engine is single-threaded with respect to the object graph: callers
// must serialize operations per song. Device-load polling is the only
// bounded wait; there is no cancellation inside the engine and no rollback:
// whatever was applied before a failure stays applied.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

const (
	defaultPollAttempts = 20
	defaultPollInterval = 50 * time.Millisecond
)

// TraceSink receives parameter resolution traces for observability. Record
// must not fail the caller; sinks swallow their own errors.
type TraceSink interface {
	Record(correlationID, deviceName string, trace ResolutionTrace)
}

// NopSink discards traces.
type NopSink struct{}

func (NopSink) Record(string, string, ResolutionTrace) {}

// Options tunes engine timing. Zero values select the defaults.
type Options struct {
	// PollAttempts bounds the device-load polling loop.
	PollAttempts int
	// PollInterval is the sleep between device-count polls.
	PollInterval time.Duration
}

// Engine orchestrates chain building against one host object graph.
type Engine struct {
	song         live.Song
	log          *logrus.Logger
	traces       TraceSink
	pollAttempts int
	pollInterval time.Duration
}

// New creates an engine over the given object graph. A nil logger logs to
// the logrus standard logger; a nil sink discards traces.
func New(song live.Song, log *logrus.Logger, traces TraceSink, opts Options) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if traces == nil {
		traces = NopSink{}
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Engine{
		song:         song,
		log:          log,
		traces:       traces,
		pollAttempts: attempts,
		pollInterval: interval,
	}
}

// Step is one build instruction: insert a device, optionally position it,
// then apply its parameter updates in order.
type Step struct {
	DeviceName       string            `json:"device_name"`
	Position         *Position         `json:"position,omitempty"`
	InsertIndex      *int              `json:"insert_index,omitempty"`
	ParameterUpdates []ParameterUpdate `json:"parameter_updates,omitempty"`
}

// UpdateItem is one modify instruction against an existing device, selected
// by index or by name plus occurrence ordinal.
type UpdateItem struct {
	DeviceName       string            `json:"device_name,omitempty"`
	DeviceIndex      *int              `json:"device_index,omitempty"`
	DeviceOccurrence *int              `json:"device_occurrence,omitempty"`
	ParameterUpdates []ParameterUpdate `json:"parameter_updates,omitempty"`
}

// ParameterUpdate is one parameter-change instruction. Exactly one of Value,
// TargetDisplayValue or TargetDisplayText may be set; the caller validates
// that before the engine sees it.
type ParameterUpdate struct {
	ParamName  string `json:"param_name,omitempty"`
	ParamIndex *int   `json:"param_index,omitempty"`

	Value              *float64 `json:"value,omitempty"`
	TargetDisplayValue *float64 `json:"target_display_value,omitempty"`
	TargetUnit         string   `json:"target_unit,omitempty"`
	TargetDisplayText  *string  `json:"target_display_text,omitempty"`
	FallbackValue      *float64 `json:"fallback_value,omitempty"`
}

// AppliedParameter reports one successful parameter application.
type AppliedParameter struct {
	ParamName    string    `json:"param_name"`
	ParamValue   float64   `json:"param_value"`
	DisplayValue string    `json:"display_value"`
	Mode         ApplyMode `json:"mode"`
	ExactMatch   *bool     `json:"exact_match"`
}

// StepResult reports one executed build step.
type StepResult struct {
	StepIndex           int                `json:"step_index"`
	DeviceName          string             `json:"device_name"`
	DeviceClass         string             `json:"device_class"`
	DeviceIndex         int                `json:"device_index"`
	PositionApplied     bool               `json:"position_applied"`
	PositionMessage     string             `json:"position_message,omitempty"`
	ParametersApplied   []AppliedParameter `json:"parameters_applied"`
	UnmatchedParameters []string           `json:"unmatched_parameters"`
}

// UpdateResult reports one executed update item.
type UpdateResult struct {
	UpdateIndex         int                `json:"update_index"`
	DeviceName          string             `json:"device_name"`
	DeviceClass         string             `json:"device_class"`
	DeviceIndex         int                `json:"device_index"`
	ParametersApplied   []AppliedParameter `json:"parameters_applied"`
	UnmatchedParameters []string           `json:"unmatched_parameters"`
}

// ParameterInfo is one parameter in an inspection snapshot.
type ParameterInfo struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Default     float64 `json:"default"`
	IsQuantized bool    `json:"is_quantized"`
	Value       float64 `json:"value"`
	Display     string  `json:"display"`
}

// DeviceInfo is one device in an inspection snapshot.
type DeviceInfo struct {
	DeviceIndex int             `json:"device_index"`
	DeviceName  string          `json:"device_name"`
	DeviceClass string          `json:"device_class"`
	Parameters  []ParameterInfo `json:"parameters,omitempty"`
}

// Result is the envelope every orchestrated call returns. It always has a
// defined shape: on failure ErrorKind and Message carry the cause and the
// executed-so-far lists carry the partial work.
type Result struct {
	OK              bool           `json:"ok"`
	ErrorKind       Kind           `json:"error_kind,omitempty"`
	Message         string         `json:"message"`
	CorrelationID   string         `json:"correlation_id"`
	TargetTrack     *TrackRef      `json:"target_track,omitempty"`
	StepsExecuted   []StepResult   `json:"steps_executed,omitempty"`
	UpdatesExecuted []UpdateResult `json:"updates_executed,omitempty"`
	Devices         []DeviceInfo   `json:"devices,omitempty"`
	Warnings        []string       `json:"warnings"`
	ElapsedMS       float64        `json:"elapsed_ms"`
}

// BuildChain inserts and configures devices step by step on the resolved
// target track. Structural failures (malformed step, device not found, load
// timeout) abort the call and return the steps already executed; individual
// parameter mismatches degrade to unmatched entries and warnings.
func (e *Engine) BuildChain(steps []Step, target *TargetSelector) (res Result) {
	start := time.Now()
	res.CorrelationID = uuid.NewString()
	res.Warnings = []string{}
	defer e.recoverHostFault(&res, start)

	if len(steps) == 0 {
		return e.fail(res, start, errf(KindMalformedStep, "steps must be a non-empty array"))
	}

	track, trackIndex, err := e.resolveTrackTarget(target)
	if err != nil {
		return e.fail(res, start, err)
	}
	res.TargetTrack = &TrackRef{TrackIndex: trackIndex, TrackName: track.Name()}
	res.StepsExecuted = []StepResult{}

	for idx, step := range steps {
		if strings.TrimSpace(step.DeviceName) == "" {
			return e.fail(res, start, errf(KindMalformedStep, "step %d missing device_name", idx))
		}

		inserted, err := e.insertDevice(track, step)
		if err != nil {
			return e.fail(res, start, errf(KindOf(err), "step %d failed: %v", idx, err))
		}

		stepResult := StepResult{
			StepIndex:       idx,
			DeviceName:      inserted.device.Name(),
			DeviceClass:     inserted.device.ClassName(),
			DeviceIndex:     inserted.deviceIndex,
			PositionApplied: inserted.positionApplied,
			PositionMessage: inserted.positionMessage,
		}
		applied, unmatched, warnings := e.applyParameterUpdates(res.CorrelationID, inserted.device, step.ParameterUpdates)
		stepResult.ParametersApplied = applied
		stepResult.UnmatchedParameters = unmatched
		res.Warnings = append(res.Warnings, warnings...)
		res.StepsExecuted = append(res.StepsExecuted, stepResult)
	}

	res.OK = true
	res.Message = "chain built"
	res.ElapsedMS = elapsedMS(start)
	return res
}

// UpdateParameters applies parameter edits to existing devices on the
// resolved target track, mirroring BuildChain's fail-fast and degradation
// semantics.
func (e *Engine) UpdateParameters(updates []UpdateItem, target *TargetSelector) (res Result) {
	start := time.Now()
	res.CorrelationID = uuid.NewString()
	res.Warnings = []string{}
	defer e.recoverHostFault(&res, start)

	if len(updates) == 0 {
		return e.fail(res, start, errf(KindMalformedUpdate, "updates must be a non-empty array"))
	}

	track, trackIndex, err := e.resolveTrackTarget(target)
	if err != nil {
		return e.fail(res, start, err)
	}
	res.TargetTrack = &TrackRef{TrackIndex: trackIndex, TrackName: track.Name()}
	res.UpdatesExecuted = []UpdateResult{}

	for idx, item := range updates {
		device, deviceIndex, err := resolveExistingDevice(track, item)
		if err != nil {
			return e.fail(res, start, errf(KindOf(err), "update %d failed: %v", idx, err))
		}

		itemResult := UpdateResult{
			UpdateIndex: idx,
			DeviceName:  device.Name(),
			DeviceClass: device.ClassName(),
			DeviceIndex: deviceIndex,
		}
		applied, unmatched, warnings := e.applyParameterUpdates(res.CorrelationID, device, item.ParameterUpdates)
		itemResult.ParametersApplied = applied
		itemResult.UnmatchedParameters = unmatched
		res.Warnings = append(res.Warnings, warnings...)
		res.UpdatesExecuted = append(res.UpdatesExecuted, itemResult)
	}

	res.OK = true
	res.Message = "device parameters updated"
	res.ElapsedMS = elapsedMS(start)
	return res
}

// InspectChain snapshots a track's devices and, optionally, every
// parameter's metadata, current value and rendered display.
func (e *Engine) InspectChain(target *TargetSelector, includeParameters bool) (res Result) {
	start := time.Now()
	res.CorrelationID = uuid.NewString()
	res.Warnings = []string{}
	defer e.recoverHostFault(&res, start)

	track, trackIndex, err := e.resolveTrackTarget(target)
	if err != nil {
		return e.fail(res, start, err)
	}
	res.TargetTrack = &TrackRef{TrackIndex: trackIndex, TrackName: track.Name()}

	devices := track.Devices()
	res.Devices = make([]DeviceInfo, 0, len(devices))
	for idx, device := range devices {
		info := DeviceInfo{
			DeviceIndex: idx,
			DeviceName:  device.Name(),
			DeviceClass: device.ClassName(),
		}
		if includeParameters {
			for pidx, p := range device.Parameters() {
				current := p.Value()
				info.Parameters = append(info.Parameters, ParameterInfo{
					Index:       pidx,
					Name:        p.Name(),
					Min:         p.Min(),
					Max:         p.Max(),
					Default:     p.DefaultValue(),
					IsQuantized: p.IsQuantized(),
					Value:       current,
					Display:     p.DisplayValue(current),
				})
			}
		}
		res.Devices = append(res.Devices, info)
	}

	res.OK = true
	res.Message = "chain inspected"
	res.ElapsedMS = elapsedMS(start)
	return res
}

// resolveExistingDevice selects a pre-existing device by index, or by
// normalized-name containment plus a zero-based occurrence ordinal over the
// filtered match list.
func resolveExistingDevice(track live.Track, item UpdateItem) (live.Device, int, error) {
	devices := track.Devices()
	if len(devices) == 0 {
		return nil, -1, errf(KindDeviceNotFound, "no devices on track")
	}

	hasName := strings.TrimSpace(item.DeviceName) != ""
	hasIndex := item.DeviceIndex != nil
	if hasName && hasIndex {
		return nil, -1, errf(KindMalformedUpdate, "device_name and device_index cannot be used together")
	}
	if !hasName && !hasIndex {
		return nil, -1, errf(KindMalformedUpdate, "missing device selector")
	}

	if hasIndex {
		idx := *item.DeviceIndex
		if idx < 0 || idx >= len(devices) {
			return nil, -1, errf(KindDeviceNotFound, "invalid device_index %d", idx)
		}
		return devices[idx], idx, nil
	}

	query := normalizeName(item.DeviceName)
	if query == "" {
		return nil, -1, errf(KindMalformedUpdate, "invalid device_name")
	}

	var matches []int
	for idx, device := range devices {
		candidate := normalizeName(device.Name())
		if query == candidate || strings.Contains(candidate, query) || strings.Contains(query, candidate) {
			matches = append(matches, idx)
		}
	}
	if len(matches) == 0 {
		return nil, -1, errf(KindDeviceNotFound, "device %q not found", item.DeviceName)
	}

	occurrence := 0
	if item.DeviceOccurrence != nil {
		occurrence = *item.DeviceOccurrence
	}
	if occurrence < 0 || occurrence >= len(matches) {
		return nil, -1, errf(KindMalformedUpdate, "invalid device_occurrence %d", occurrence)
	}
	idx := matches[occurrence]
	return devices[idx], idx, nil
}

// applyParameterUpdates runs every update against the device in order.
// Resolution misses and apply failures never abort: they land in the
// unmatched list (and warnings for apply failures) while the rest proceed.
func (e *Engine) applyParameterUpdates(correlationID string, device live.Device, updates []ParameterUpdate) (applied []AppliedParameter, unmatched []string, warnings []string) {
	applied = []AppliedParameter{}
	unmatched = []string{}
	warnings = []string{}

	for _, update := range updates {
		param, trace, err := resolveParameter(device, update)
		e.traces.Record(correlationID, device.Name(), trace)
		if err != nil {
			hint := update.ParamName
			if hint == "" && update.ParamIndex != nil {
				hint = fmt.Sprintf("index:%d", *update.ParamIndex)
			}
			if hint == "" {
				hint = "unknown"
			}
			unmatched = append(unmatched, hint)
			continue
		}

		var outcome applyOutcome
		switch {
		case update.TargetDisplayText != nil:
			outcome, err = setParameterByDisplayText(param, *update.TargetDisplayText, update.FallbackValue)
		case update.TargetDisplayValue != nil:
			outcome, err = setParameterWithVerify(param, *update.TargetDisplayValue, update.TargetUnit, update.FallbackValue)
		case update.Value != nil:
			outcome, err = setParameterAbsolute(param, *update.Value)
		default:
			unmatched = append(unmatched, paramHint(update))
			continue
		}

		if err != nil {
			unmatched = append(unmatched, param.Name())
			warnings = append(warnings, err.Error())
			e.log.WithFields(logrus.Fields{
				"device": device.Name(),
				"param":  param.Name(),
				"kind":   KindOf(err),
			}).Warn("parameter update failed")
			continue
		}

		applied = append(applied, AppliedParameter{
			ParamName:    param.Name(),
			ParamValue:   outcome.Value,
			DisplayValue: outcome.Display,
			Mode:         outcome.Mode,
			ExactMatch:   outcome.ExactMatch,
		})
	}
	return applied, unmatched, warnings
}

func paramHint(update ParameterUpdate) string {
	if update.ParamName != "" {
		return update.ParamName
	}
	if update.ParamIndex != nil {
		return fmt.Sprintf("index:%d", *update.ParamIndex)
	}
	return "unknown"
}

// fail stamps a structured failure onto the result envelope, preserving the
// partial work already recorded.
func (e *Engine) fail(res Result, start time.Time, err error) Result {
	res.OK = false
	res.ErrorKind = KindOf(err)
	res.Message = err.Error()
	res.ElapsedMS = elapsedMS(start)
	e.log.WithFields(logrus.Fields{
		"kind":           res.ErrorKind,
		"correlation_id": res.CorrelationID,
	}).Warn(res.Message)
	return res
}

// recoverHostFault converts a panicking host adapter into a structured
// failure entry instead of unwinding past the orchestrator boundary.
func (e *Engine) recoverHostFault(res *Result, start time.Time) {
	if r := recover(); r != nil {
		res.OK = false
		res.ErrorKind = KindHostFault
		res.Message = fmt.Sprintf("host adapter fault: %v", r)
		res.ElapsedMS = elapsedMS(start)
		e.log.WithField("correlation_id", res.CorrelationID).Error(res.Message)
	}
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

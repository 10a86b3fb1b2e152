package engine

import (
	"strings"
	"testing"

	"github.com/mparcell123/Ableton-MCP/internal/live"
	"github.com/mparcell123/Ableton-MCP/internal/live/livetest"
)

// eqSong returns a song whose catalog loads a fully-parameterized EQ Eight
// onto the selected track.
func eqSong(trackNames ...string) *livetest.Song {
	song := catalogSong(trackNames...)
	song.LoadHook = func(item live.BrowserItem) {
		if normalizeName(item.Name()) == "eqeight" {
			song.Selected.Devs = append(song.Selected.Devs, livetest.NewEQEight())
			return
		}
		song.Selected.Devs = append(song.Selected.Devs, &livetest.Device{DeviceName: item.Name()})
	}
	return song
}

// recordingSink captures traces for assertions.
type recordingSink struct {
	records []ResolutionTrace
}

func (s *recordingSink) Record(_, _ string, trace ResolutionTrace) {
	s.records = append(s.records, trace)
}

// --- BuildChain ---

func TestBuildChainAppliesParameters(t *testing.T) {
	song := eqSong("Drums")
	sink := &recordingSink{}
	e := New(song, quietLogger(), sink, Options{PollAttempts: 3, PollInterval: 0})

	res := e.BuildChain([]Step{{
		DeviceName: "eq8",
		ParameterUpdates: []ParameterUpdate{
			{ParamName: "Band 8 Gain", Value: floatPtr(3)},
			{ParamName: "Wobble Factor", Value: floatPtr(1)},
		},
	}}, &TargetSelector{TrackIndex: intPtr(0)})

	if !res.OK {
		t.Fatalf("BuildChain failed: %s", res.Message)
	}
	if res.CorrelationID == "" {
		t.Error("missing correlation id")
	}
	if res.TargetTrack == nil || res.TargetTrack.TrackName != "Drums" {
		t.Fatalf("target track = %+v, want Drums", res.TargetTrack)
	}
	if len(res.StepsExecuted) != 1 {
		t.Fatalf("steps executed = %d, want 1", len(res.StepsExecuted))
	}

	step := res.StepsExecuted[0]
	if step.DeviceName != "EQ Eight" {
		t.Errorf("device = %q, want EQ Eight", step.DeviceName)
	}
	if len(step.ParametersApplied) != 1 {
		t.Fatalf("parameters applied = %d, want 1", len(step.ParametersApplied))
	}
	if step.ParametersApplied[0].ParamName != "8 Gain A" {
		t.Errorf("applied %q, want 8 Gain A", step.ParametersApplied[0].ParamName)
	}
	if step.ParametersApplied[0].ParamValue != 3 {
		t.Errorf("value = %v, want 3", step.ParametersApplied[0].ParamValue)
	}

	// The unknown parameter degrades to an unmatched entry; the step still
	// reports success.
	if len(step.UnmatchedParameters) != 1 || step.UnmatchedParameters[0] != "Wobble Factor" {
		t.Errorf("unmatched = %v, want [Wobble Factor]", step.UnmatchedParameters)
	}
	if len(sink.records) != 2 {
		t.Errorf("trace records = %d, want 2", len(sink.records))
	}
}

func TestBuildChainFailFastKeepsPartialWork(t *testing.T) {
	song := eqSong("Drums")
	e := New(song, quietLogger(), nil, Options{PollAttempts: 3, PollInterval: 0})

	res := e.BuildChain([]Step{
		{DeviceName: "eq8"},
		{DeviceName: "Tape Echo Deluxe"},
		{DeviceName: "compressor"},
	}, &TargetSelector{TrackIndex: intPtr(0)})

	if res.OK {
		t.Fatal("BuildChain should fail on the unknown device")
	}
	if res.ErrorKind != KindDeviceNotFound {
		t.Errorf("error kind = %q, want %q", res.ErrorKind, KindDeviceNotFound)
	}
	if len(res.StepsExecuted) != 1 {
		t.Errorf("steps executed = %d, want the one completed before the failure", len(res.StepsExecuted))
	}
	if !strings.Contains(res.Message, "step 1") {
		t.Errorf("message %q should name the failing step", res.Message)
	}
	// The first device stays inserted: fail-fast, not rollback.
	if len(song.TrackList[0].Devs) != 1 {
		t.Errorf("devices on track = %d, want 1", len(song.TrackList[0].Devs))
	}
}

func TestBuildChainRejectsEmptySteps(t *testing.T) {
	e := newTestEngine(eqSong("Drums"))

	res := e.BuildChain(nil, nil)
	if res.OK || res.ErrorKind != KindMalformedStep {
		t.Errorf("result = (%v, %q), want malformed_step failure", res.OK, res.ErrorKind)
	}
}

func TestBuildChainRejectsMissingDeviceName(t *testing.T) {
	e := newTestEngine(eqSong("Drums"))

	res := e.BuildChain([]Step{{DeviceName: "  "}}, &TargetSelector{TrackIndex: intPtr(0)})
	if res.OK || res.ErrorKind != KindMalformedStep {
		t.Errorf("result = (%v, %q), want malformed_step failure", res.OK, res.ErrorKind)
	}
}

func TestBuildChainPositionsDevice(t *testing.T) {
	song := eqSong("Drums")
	song.TrackList[0].Devs = []*livetest.Device{{DeviceName: "Utility"}}
	e := New(song, quietLogger(), nil, Options{PollAttempts: 3, PollInterval: 0})

	res := e.BuildChain([]Step{{
		DeviceName: "eq8",
		Position:   &Position{Placement: "before", RelativeDeviceName: "Utility"},
	}}, &TargetSelector{TrackIndex: intPtr(0)})

	if !res.OK {
		t.Fatalf("BuildChain failed: %s", res.Message)
	}
	step := res.StepsExecuted[0]
	if !step.PositionApplied || step.DeviceIndex != 0 {
		t.Errorf("position = (%v, %d), want (true, 0)", step.PositionApplied, step.DeviceIndex)
	}
	if song.TrackList[0].Devs[0].DeviceName != "EQ Eight" {
		t.Error("EQ Eight should sit before Utility")
	}
}

// --- UpdateParameters ---

func TestUpdateParametersByNameAndOccurrence(t *testing.T) {
	song := eqSong("Drums")
	first := livetest.NewEQEight()
	second := livetest.NewEQEight()
	song.TrackList[0].Devs = []*livetest.Device{first, second}
	e := newTestEngine(song)

	res := e.UpdateParameters([]UpdateItem{{
		DeviceName:       "eq eight",
		DeviceOccurrence: intPtr(1),
		ParameterUpdates: []ParameterUpdate{
			{ParamName: "band 1 gain", Value: floatPtr(-6)},
		},
	}}, &TargetSelector{TrackIndex: intPtr(0)})

	if !res.OK {
		t.Fatalf("UpdateParameters failed: %s", res.Message)
	}
	if res.UpdatesExecuted[0].DeviceIndex != 1 {
		t.Errorf("device index = %d, want occurrence 1", res.UpdatesExecuted[0].DeviceIndex)
	}
	if second.Params[2].Val != -6 {
		t.Errorf("second EQ band 1 gain = %v, want -6", second.Params[2].Val)
	}
	if first.Params[2].Val != 0 {
		t.Errorf("first EQ must stay untouched, got %v", first.Params[2].Val)
	}
}

func TestUpdateParametersSelectorConflicts(t *testing.T) {
	song := eqSong("Drums")
	song.TrackList[0].Devs = []*livetest.Device{livetest.NewEQEight()}
	e := newTestEngine(song)

	res := e.UpdateParameters([]UpdateItem{{
		DeviceName:  "eq eight",
		DeviceIndex: intPtr(0),
	}}, &TargetSelector{TrackIndex: intPtr(0)})
	if res.OK || res.ErrorKind != KindMalformedUpdate {
		t.Errorf("result = (%v, %q), want malformed_update", res.OK, res.ErrorKind)
	}

	res = e.UpdateParameters([]UpdateItem{{}}, &TargetSelector{TrackIndex: intPtr(0)})
	if res.OK || res.ErrorKind != KindMalformedUpdate {
		t.Errorf("result = (%v, %q), want malformed_update for missing selector", res.OK, res.ErrorKind)
	}
}

func TestUpdateParametersDeviceNotFound(t *testing.T) {
	song := eqSong("Drums")
	song.TrackList[0].Devs = []*livetest.Device{livetest.NewEQEight()}
	e := newTestEngine(song)

	res := e.UpdateParameters([]UpdateItem{{DeviceName: "Limiter"}}, &TargetSelector{TrackIndex: intPtr(0)})
	if res.OK || res.ErrorKind != KindDeviceNotFound {
		t.Errorf("result = (%v, %q), want device_not_found", res.OK, res.ErrorKind)
	}
}

// --- InspectChain ---

func TestInspectChainIncludesParameters(t *testing.T) {
	song := eqSong("Drums")
	song.TrackList[0].Devs = []*livetest.Device{livetest.NewEQEight()}
	e := newTestEngine(song)

	res := e.InspectChain(&TargetSelector{TrackIndex: intPtr(0)}, true)
	if !res.OK {
		t.Fatalf("InspectChain failed: %s", res.Message)
	}
	if len(res.Devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(res.Devices))
	}
	dev := res.Devices[0]
	if dev.DeviceClass != "Eq8" {
		t.Errorf("class = %q, want Eq8", dev.DeviceClass)
	}
	if len(dev.Parameters) != 33 {
		t.Fatalf("parameters = %d, want 33", len(dev.Parameters))
	}
	p := dev.Parameters[0]
	if p.Name != "1 Filter Type A" || !p.IsQuantized || p.Max != 5 {
		t.Errorf("parameter payload = %+v", p)
	}
	if p.Display == "" {
		t.Error("parameter display must be rendered")
	}
}

func TestInspectChainWithoutParameters(t *testing.T) {
	song := eqSong("Drums")
	song.TrackList[0].Devs = []*livetest.Device{livetest.NewEQEight()}
	e := newTestEngine(song)

	res := e.InspectChain(&TargetSelector{TrackIndex: intPtr(0)}, false)
	if !res.OK {
		t.Fatalf("InspectChain failed: %s", res.Message)
	}
	if len(res.Devices[0].Parameters) != 0 {
		t.Error("parameters must be omitted when not requested")
	}
}

// --- Host fault recovery ---

type faultySong struct {
	*livetest.Song
}

func (f *faultySong) Tracks() []live.Track { panic("gateway connection dropped") }

func TestOrchestratorRecoversHostFault(t *testing.T) {
	song := &faultySong{Song: eqSong("Drums")}
	e := New(song, quietLogger(), nil, Options{PollAttempts: 1, PollInterval: 0})

	res := e.BuildChain([]Step{{DeviceName: "eq8"}}, &TargetSelector{TrackIndex: intPtr(0)})
	if res.OK {
		t.Fatal("panicking host must surface as a failure")
	}
	if res.ErrorKind != KindHostFault {
		t.Errorf("error kind = %q, want %q", res.ErrorKind, KindHostFault)
	}
	if !strings.Contains(res.Message, "gateway connection dropped") {
		t.Errorf("message %q should carry the fault", res.Message)
	}
}

// --- Selection-path track ordinal ---

// rewrappingSong hands out freshly allocated track wrappers on every call,
// the way a remote adapter does. Pointer identity never matches between two
// listings; the wrappers report their ordinal instead.
type rewrappingSong struct {
	*livetest.Song
}

type ordinalTrack struct {
	live.Track
	ordinal int
}

func (t *ordinalTrack) Index() int { return t.ordinal }

func (s *rewrappingSong) Tracks() []live.Track {
	inner := s.Song.Tracks()
	out := make([]live.Track, len(inner))
	for i, tr := range inner {
		out[i] = &ordinalTrack{Track: tr, ordinal: i}
	}
	return out
}

func (s *rewrappingSong) SelectedTrack() live.Track {
	sel := s.Song.SelectedTrack()
	if sel == nil {
		return nil
	}
	for i, tr := range s.Song.Tracks() {
		if tr == sel {
			return &ordinalTrack{Track: tr, ordinal: i}
		}
	}
	return nil
}

func TestSelectionPathReportsTrackOrdinal(t *testing.T) {
	inner := catalogSong("Drums", "Bass")
	inner.Selected = inner.TrackList[1]
	inner.TrackList[1].Devs = []*livetest.Device{livetest.NewEQEight()}
	e := New(&rewrappingSong{Song: inner}, quietLogger(), nil, Options{PollAttempts: 1, PollInterval: 0})

	res := e.InspectChain(nil, false)
	if !res.OK {
		t.Fatalf("InspectChain failed: %s", res.Message)
	}
	if res.TargetTrack == nil {
		t.Fatal("missing target track")
	}
	if res.TargetTrack.TrackIndex != 1 {
		t.Errorf("track index = %d, want 1", res.TargetTrack.TrackIndex)
	}
	if res.TargetTrack.TrackName != "Bass" {
		t.Errorf("track name = %q, want Bass", res.TargetTrack.TrackName)
	}
}

package engine

import (
	"testing"

	"github.com/mparcell123/Ableton-MCP/internal/live"
	"github.com/mparcell123/Ableton-MCP/internal/live/livetest"
)

func audioEffectsCatalog() []*livetest.Item {
	return []*livetest.Item{
		{ItemName: "Audio Effects", Kids: []*livetest.Item{
			{ItemName: "EQ & Filters", Kids: []*livetest.Item{
				{ItemName: "EQ Eight", Loadable: true},
				{ItemName: "EQ Three", Loadable: true},
				{ItemName: "Auto Filter", Loadable: true},
			}},
			{ItemName: "Dynamics", Kids: []*livetest.Item{
				{ItemName: "Compressor", Loadable: true},
				{ItemName: "Glue Compressor", Loadable: true},
				{ItemName: "Limiter", Loadable: true},
			}},
		}},
		{ItemName: "Instruments", Kids: []*livetest.Item{
			{ItemName: "Operator", Loadable: true},
		}},
	}
}

func catalogSong(trackNames ...string) *livetest.Song {
	s := songWithTracks(trackNames...)
	s.Roots = audioEffectsCatalog()
	return s
}

// --- Alias table ---

func TestResolveDeviceAlias(t *testing.T) {
	cases := map[string]string{
		"eq8":        "EQ Eight",
		"EQ8":        "EQ Eight",
		"eq-8":       "EQ Eight",
		"compressor": "Compressor",
		"Operator":   "Operator", // passthrough
	}
	for in, want := range cases {
		if got := resolveDeviceAlias(in); got != want {
			t.Errorf("resolveDeviceAlias(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- Catalog search ---

func TestFindBrowserDeviceExact(t *testing.T) {
	roots := catalogSong().BrowserRoots()
	item := findBrowserDevice(roots, "EQ Eight")
	if item == nil || item.Name() != "EQ Eight" {
		t.Fatalf("findBrowserDevice = %v, want EQ Eight", item)
	}
}

func TestFindBrowserDeviceContainment(t *testing.T) {
	// Normalized target contained in the node name is enough.
	roots := catalogSong().BrowserRoots()
	item := findBrowserDevice(roots, "glue")
	if item == nil || item.Name() != "Glue Compressor" {
		t.Fatalf("findBrowserDevice = %v, want Glue Compressor", item)
	}
}

func TestFindBrowserDeviceSkipsNonLoadable(t *testing.T) {
	roots := []*livetest.Item{
		{ItemName: "Audio Effects", Kids: []*livetest.Item{
			{ItemName: "Reverb"}, // category folder, not loadable
			{ItemName: "Reverb", Loadable: true},
		}},
	}
	s := &livetest.Song{Roots: roots}
	item := findBrowserDevice(s.BrowserRoots(), "Reverb")
	if item == nil || !item.IsLoadable() {
		t.Fatalf("findBrowserDevice must return a loadable node, got %v", item)
	}
}

func TestFindBrowserDeviceMissing(t *testing.T) {
	roots := catalogSong().BrowserRoots()
	if item := findBrowserDevice(roots, "Tape Echo Deluxe"); item != nil {
		t.Errorf("findBrowserDevice = %q, want nil", item.Name())
	}
}

// --- Insertion ---

func TestInsertDeviceAppendsAndDetects(t *testing.T) {
	song := catalogSong("Drums")
	e := newTestEngine(song)
	track := song.TrackList[0]

	inserted, err := e.insertDevice(track, Step{DeviceName: "eq8"})
	if err != nil {
		t.Fatalf("insertDevice failed: %v", err)
	}
	if inserted.device.Name() != "EQ Eight" {
		t.Errorf("inserted %q, want EQ Eight", inserted.device.Name())
	}
	if inserted.deviceIndex != 0 {
		t.Errorf("device index = %d, want 0", inserted.deviceIndex)
	}
	if song.Selected != track {
		t.Error("insertion must select the owning track first")
	}
}

func TestInsertDeviceNotFound(t *testing.T) {
	song := catalogSong("Drums")
	e := newTestEngine(song)

	_, err := e.insertDevice(song.TrackList[0], Step{DeviceName: "Tape Echo Deluxe"})
	if KindOf(err) != KindDeviceNotFound {
		t.Errorf("kind = %q, want %q", KindOf(err), KindDeviceNotFound)
	}
}

func TestInsertDeviceLoadTimeout(t *testing.T) {
	song := catalogSong("Drums")
	song.LoadHook = func(live.BrowserItem) {} // never materializes
	e := newTestEngine(song)

	_, err := e.insertDevice(song.TrackList[0], Step{DeviceName: "eq8"})
	if KindOf(err) != KindDeviceLoadTimeout {
		t.Errorf("kind = %q, want %q", KindOf(err), KindDeviceLoadTimeout)
	}
}

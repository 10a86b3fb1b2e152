// Package live defines the capability interfaces for the host object graph:
// the tree of tracks, devices and parameters that Ableton Live exposes to a
// control surface, plus the device browser used to load new devices.
//
// The engine depends only on these interfaces. Production satisfies them with
// the gateway adapter (internal/gateway); tests use the in-memory fake in
// livetest. Mutations of the graph must be serialized by the caller: one
// engine call in flight at a time per song.
package live

// Song is the root of the host object graph.
type Song interface {
	// Tracks returns the ordered track list of the open document.
	Tracks() []Track
	// SelectedTrack returns the track currently selected in the host view,
	// or nil when nothing is selected.
	SelectedTrack() Track
	// SelectTrack makes the given track the host's current selection.
	// Device loading targets the selected track.
	SelectTrack(t Track) error
	// MoveDevice asks the host to move a device to the given slot on a track.
	MoveDevice(d Device, t Track, index int) error
	// BrowserRoots returns the top-level browser catalog nodes
	// (audio effects, MIDI effects, instruments, sounds, user devices).
	BrowserRoots() []BrowserItem
	// LoadBrowserItem triggers host-side insertion of a loadable catalog
	// item onto the selected track. Completion has no callback; it is
	// observed only by polling the track's device count.
	LoadBrowserItem(item BrowserItem) error
}

// Track is one mixer channel.
type Track interface {
	Name() string
	Devices() []Device
}

// Device is one effect or instrument instance on a track.
type Device interface {
	Name() string
	// ClassName is the host's class identifier (e.g. "Eq8"), distinct from
	// the user-editable display name.
	ClassName() string
	Parameters() []Parameter
}

// Parameter is one controllable float on a device. The backing value is the
// only mutable state; the display string is derived, never stored.
type Parameter interface {
	Name() string
	Min() float64
	Max() float64
	DefaultValue() float64
	// IsQuantized reports whether the backing value only takes consecutive
	// integer steps, each mapped to a discrete display label.
	IsQuantized() bool
	Value() float64
	SetValue(v float64) error
	// DisplayValue renders an arbitrary backing value as the host would
	// display it, without changing the parameter. This is the string oracle
	// the value engine converges against.
	DisplayValue(v float64) string
}

// BrowserItem is one node of the hierarchical device catalog.
type BrowserItem interface {
	Name() string
	IsLoadable() bool
	Children() []BrowserItem
}

package engine

import (
	"fmt"
	"strings"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// Position places a device relative to an anchor device already on the
// track. RelativeDeviceIndex is an occurrence ordinal over the filtered
// match list, not an index into the full device list.
type Position struct {
	Placement           string `json:"placement"` // "before" or "after"
	RelativeDeviceName  string `json:"relative_device_name"`
	RelativeDeviceIndex *int   `json:"relative_device_index,omitempty"`
}

// applyDevicePosition computes the desired slot for a device and requests a
// move when it differs from the current slot. An explicit insertIndex wins
// over a relative position. Returns the final index, whether a move was
// performed, and a short description of what was requested. Positioning
// problems never abort the step; they surface through the message.
func (e *Engine) applyDevicePosition(track live.Track, device live.Device, currentIndex int, position *Position, insertIndex *int) (int, bool, string) {
	devices := track.Devices()
	if len(devices) == 0 {
		return currentIndex, false, "no devices on track"
	}

	desired := currentIndex
	var msg string

	switch {
	case insertIndex != nil:
		desired = clampIndex(*insertIndex, len(devices))
		msg = fmt.Sprintf("insert_index=%d", *insertIndex)
	case position != nil:
		placement := strings.ToLower(strings.TrimSpace(position.Placement))
		anchor, ok := findAnchorDeviceIndex(devices, position.RelativeDeviceName, position.RelativeDeviceIndex)
		if !ok {
			return currentIndex, false, "anchor not found"
		}
		if placement == "before" {
			desired = anchor
		} else {
			desired = anchor + 1
		}
		desired = clampIndex(desired, len(devices))
		msg = fmt.Sprintf("%s %s", placement, position.RelativeDeviceName)
	}

	if desired == currentIndex {
		return currentIndex, false, msg
	}

	if err := e.song.MoveDevice(device, track, desired); err != nil {
		return currentIndex, false, fmt.Sprintf("positioning failed: %v", err)
	}
	return desired, true, msg
}

// findAnchorDeviceIndex locates the anchor device by normalized-name
// containment in either direction. With multiple matches, occurrence picks
// the Nth (zero-based); out-of-range or absent occurrence falls back to the
// first match.
func findAnchorDeviceIndex(devices []live.Device, anchorName string, occurrence *int) (int, bool) {
	target := normalizeName(anchorName)
	if target == "" {
		return 0, false
	}
	var matches []int
	for idx, dev := range devices {
		candidate := normalizeName(dev.Name())
		if target == candidate || strings.Contains(candidate, target) || strings.Contains(target, candidate) {
			matches = append(matches, idx)
		}
	}
	if len(matches) == 0 {
		return 0, false
	}
	if occurrence != nil {
		if pick := *occurrence; pick >= 0 && pick < len(matches) {
			return matches[pick], true
		}
	}
	return matches[0], true
}

// clampIndex bounds idx into [0, count-1].
func clampIndex(idx, count int) int {
	if idx < 0 {
		return 0
	}
	if idx > count-1 {
		return count - 1
	}
	return idx
}

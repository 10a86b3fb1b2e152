package engine

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// deviceAliases maps common shorthand device names to the canonical browser
// entry before catalog lookup.
var deviceAliases = map[string]string{
	"eq8":             "EQ Eight",
	"eq eight":        "EQ Eight",
	"eq-8":            "EQ Eight",
	"compressor":      "Compressor",
	"glue compressor": "Glue Compressor",
	"limiter":         "Limiter",
	"auto filter":     "Auto Filter",
	"utility":         "Utility",
	"reverb":          "Reverb",
	"delay":           "Delay",
}

// resolveDeviceAlias maps a requested device name through the alias table,
// returning the input unchanged when no alias applies.
func resolveDeviceAlias(name string) string {
	raw := strings.TrimSpace(name)
	if canonical, ok := deviceAliases[strings.ToLower(raw)]; ok {
		return canonical
	}
	return raw
}

// findBrowserDevice searches the hierarchical catalog for a loadable node
// whose normalized name equals or contains the normalized target. This is a
// presence test, not a ranked search: the first match found wins.
func findBrowserDevice(roots []live.BrowserItem, deviceName string) live.BrowserItem {
	target := normalizeName(deviceName)
	if target == "" {
		return nil
	}
	for _, root := range roots {
		if found := searchBrowserNode(root, target); found != nil {
			return found
		}
	}
	return nil
}

// searchBrowserNode does a stack-based depth-first walk of one catalog root.
func searchBrowserNode(root live.BrowserItem, normalizedTarget string) live.BrowserItem {
	stack := []live.BrowserItem{root}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		name := normalizeName(current.Name())
		if (normalizedTarget == name || strings.Contains(name, normalizedTarget)) && current.IsLoadable() {
			return current
		}
		stack = append(stack, current.Children()...)
	}
	return nil
}

// insertedDevice reports a completed insertion.
type insertedDevice struct {
	device          live.Device
	deviceIndex     int
	positionApplied bool
	positionMessage string
}

// insertDevice loads a device onto the track and waits for it to
// materialize. Insertion has no completion callback: the track is selected,
// the catalog item loaded, then the device count is polled at a fixed
// interval for a bounded number of attempts. The new device is the last
// element of the device list at the moment the count increases.
func (e *Engine) insertDevice(track live.Track, step Step) (insertedDevice, error) {
	canonical := resolveDeviceAlias(step.DeviceName)
	item := findBrowserDevice(e.song.BrowserRoots(), canonical)
	if item == nil {
		return insertedDevice{}, errf(KindDeviceNotFound, "device %q not found", canonical)
	}

	previousCount := len(track.Devices())
	if err := e.song.SelectTrack(track); err != nil {
		return insertedDevice{}, errf(KindApplyFailed, "selecting track: %v", err)
	}
	if err := e.song.LoadBrowserItem(item); err != nil {
		return insertedDevice{}, errf(KindApplyFailed, "loading %q: %v", item.Name(), err)
	}

	loaded := false
	for attempt := 0; attempt < e.pollAttempts; attempt++ {
		if len(track.Devices()) > previousCount {
			loaded = true
			break
		}
		time.Sleep(e.pollInterval)
	}
	if !loaded && len(track.Devices()) <= previousCount {
		return insertedDevice{}, errf(KindDeviceLoadTimeout, "device %q load timed out", canonical)
	}

	devices := track.Devices()
	device := devices[len(devices)-1]
	currentIndex := len(devices) - 1

	e.log.WithFields(logrus.Fields{
		"device": device.Name(),
		"track":  track.Name(),
		"index":  currentIndex,
	}).Debug("device inserted")

	result := insertedDevice{device: device, deviceIndex: currentIndex}
	if step.Position != nil || step.InsertIndex != nil {
		finalIndex, applied, msg := e.applyDevicePosition(track, device, currentIndex, step.Position, step.InsertIndex)
		result.deviceIndex = finalIndex
		result.positionApplied = applied
		result.positionMessage = msg
	}
	return result, nil
}

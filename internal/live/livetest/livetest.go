// Package livetest provides an in-memory fake of the live object graph for
// engine and tool tests. It implements every interface in internal/live with
// plain structs so tests can script tracks, devices, parameters and browser
// catalogs without a running host.
package livetest

import (
	"fmt"
	"math"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// Param is a scripted parameter. DisplayFunc, when set, renders a backing
// value the way the host would; otherwise the raw float is formatted.
type Param struct {
	ParamName string
	MinV      float64
	MaxV      float64
	DefaultV  float64
	Quantized bool
	Val       float64

	DisplayFunc func(v float64) string
	// SetErr, when non-nil, makes every SetValue call fail.
	SetErr error
}

func (p *Param) Name() string          { return p.ParamName }
func (p *Param) Min() float64          { return p.MinV }
func (p *Param) Max() float64          { return p.MaxV }
func (p *Param) DefaultValue() float64 { return p.DefaultV }
func (p *Param) IsQuantized() bool     { return p.Quantized }
func (p *Param) Value() float64        { return p.Val }

func (p *Param) SetValue(v float64) error {
	if p.SetErr != nil {
		return p.SetErr
	}
	p.Val = v
	return nil
}

func (p *Param) DisplayValue(v float64) string {
	if p.DisplayFunc != nil {
		return p.DisplayFunc(v)
	}
	return fmt.Sprintf("%g", v)
}

// Device is a scripted device.
type Device struct {
	DeviceName string
	Class      string
	Params     []*Param
}

func (d *Device) Name() string      { return d.DeviceName }
func (d *Device) ClassName() string { return d.Class }

func (d *Device) Parameters() []live.Parameter {
	out := make([]live.Parameter, len(d.Params))
	for i, p := range d.Params {
		out[i] = p
	}
	return out
}

// Track is a scripted track.
type Track struct {
	TrackName string
	Devs      []*Device
}

func (t *Track) Name() string { return t.TrackName }

func (t *Track) Devices() []live.Device {
	out := make([]live.Device, len(t.Devs))
	for i, d := range t.Devs {
		out[i] = d
	}
	return out
}

// Item is a scripted browser catalog node.
type Item struct {
	ItemName string
	Loadable bool
	Kids     []*Item
}

func (it *Item) Name() string     { return it.ItemName }
func (it *Item) IsLoadable() bool { return it.Loadable }

func (it *Item) Children() []live.BrowserItem {
	out := make([]live.BrowserItem, len(it.Kids))
	for i, k := range it.Kids {
		out[i] = k
	}
	return out
}

// Song is the fake object graph root.
type Song struct {
	TrackList []*Track
	Selected  *Track
	Roots     []*Item

	// LoadHook runs on LoadBrowserItem instead of the default behavior
	// (appending a device named after the item to the selected track).
	// A hook that does nothing simulates a device-load timeout.
	LoadHook func(item live.BrowserItem)

	// MoveErr, when non-nil, makes MoveDevice fail.
	MoveErr error
	// Moves records every MoveDevice request as (deviceName, index).
	Moves []Move
}

// Move is one recorded MoveDevice request.
type Move struct {
	DeviceName string
	Index      int
}

func (s *Song) Tracks() []live.Track {
	out := make([]live.Track, len(s.TrackList))
	for i, t := range s.TrackList {
		out[i] = t
	}
	return out
}

func (s *Song) SelectedTrack() live.Track {
	if s.Selected == nil {
		return nil
	}
	return s.Selected
}

func (s *Song) SelectTrack(t live.Track) error {
	for _, tr := range s.TrackList {
		if live.Track(tr) == t {
			s.Selected = tr
			return nil
		}
	}
	return fmt.Errorf("track %q not in song", t.Name())
}

func (s *Song) MoveDevice(d live.Device, t live.Track, index int) error {
	if s.MoveErr != nil {
		return s.MoveErr
	}
	s.Moves = append(s.Moves, Move{DeviceName: d.Name(), Index: index})
	track, ok := t.(*Track)
	if !ok {
		return fmt.Errorf("unknown track type %T", t)
	}
	from := -1
	for i, dev := range track.Devs {
		if live.Device(dev) == d {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("device %q not on track %q", d.Name(), t.Name())
	}
	if index < 0 || index >= len(track.Devs) {
		return fmt.Errorf("move index %d out of range", index)
	}
	dev := track.Devs[from]
	track.Devs = append(track.Devs[:from], track.Devs[from+1:]...)
	rest := append([]*Device{}, track.Devs[index:]...)
	track.Devs = append(append(track.Devs[:index:index], dev), rest...)
	return nil
}

func (s *Song) BrowserRoots() []live.BrowserItem {
	out := make([]live.BrowserItem, len(s.Roots))
	for i, r := range s.Roots {
		out[i] = r
	}
	return out
}

func (s *Song) LoadBrowserItem(item live.BrowserItem) error {
	if s.LoadHook != nil {
		s.LoadHook(item)
		return nil
	}
	if s.Selected == nil {
		return fmt.Errorf("no selected track")
	}
	s.Selected.Devs = append(s.Selected.Devs, &Device{DeviceName: item.Name()})
	return nil
}

// NewEQEight builds a device shaped like an 8-band parametric EQ: per band
// N, parameters "N Filter Type A" (quantized), "N Frequency A", "N Gain A"
// and "N Q A", plus a trailing "Output Gain".
func NewEQEight() *Device {
	d := &Device{DeviceName: "EQ Eight", Class: "Eq8"}
	types := []string{"Low Cut", "Low Shelf", "Bell", "Notch", "High Shelf", "High Cut"}
	for band := 1; band <= 8; band++ {
		d.Params = append(d.Params,
			&Param{
				ParamName: fmt.Sprintf("%d Filter Type A", band),
				MinV:      0, MaxV: 5, Quantized: true,
				DisplayFunc: func(v float64) string {
					i := int(v)
					if i < 0 || i >= len(types) {
						return "???"
					}
					return types[i]
				},
			},
			&Param{
				ParamName: fmt.Sprintf("%d Frequency A", band),
				MinV:      0, MaxV: 1,
				DisplayFunc: ExpFrequencyDisplay(20, 20000),
			},
			&Param{
				ParamName: fmt.Sprintf("%d Gain A", band),
				MinV:      -15, MaxV: 15,
				DisplayFunc: func(v float64) string { return fmt.Sprintf("%.1f dB", v) },
			},
			&Param{
				ParamName: fmt.Sprintf("%d Q A", band),
				MinV:      0.1, MaxV: 18, DefaultV: 0.71,
				DisplayFunc: func(v float64) string { return fmt.Sprintf("%.2f", v) },
			},
		)
	}
	d.Params = append(d.Params, &Param{
		ParamName: "Output Gain",
		MinV:      -15, MaxV: 15,
		DisplayFunc: func(v float64) string { return fmt.Sprintf("%.1f dB", v) },
	})
	return d
}

// ExpFrequencyDisplay returns a display function mapping [0,1] exponentially
// onto [lo,hi] Hz, switching to kHz at 1000 like the host does.
func ExpFrequencyDisplay(lo, hi float64) func(v float64) string {
	return func(v float64) string {
		hz := lo * math.Pow(hi/lo, v)
		if hz >= 1000 {
			return fmt.Sprintf("%.2f kHz", hz/1000)
		}
		return fmt.Sprintf("%.1f Hz", hz)
	}
}

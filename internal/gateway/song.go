package gateway

import (
	"context"
	"fmt"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// Song adapts the gateway action surface to the live object graph
// interfaces. Every accessor is one gateway round trip; nothing is cached
// across calls because the host document mutates underneath us.
//
// The live interfaces have no error returns on read accessors, so transport
// failures surface as panics carrying the failed action. The engine recovers
// them at its orchestration boundary and reports a structured host fault.
type Song struct {
	ctx    context.Context
	client *Client
}

// NewSong binds an object-graph view to a request context. Callers create
// one per inbound operation so gateway round trips inherit its deadline.
func NewSong(ctx context.Context, client *Client) *Song {
	return &Song{ctx: ctx, client: client}
}

// mustDo panics on transport failure or an ok=false envelope. Mutating
// callers that can return errors use doErr instead.
func (s *Song) mustDo(action string, params map[string]any) *Response {
	resp, err := s.doErr(action, params)
	if err != nil {
		panic(err.Error())
	}
	return resp
}

func (s *Song) doErr(action string, params map[string]any) (*Response, error) {
	resp, err := s.client.Do(s.ctx, action, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("%s: %s", action, resp.FailureMessage())
	}
	return resp, nil
}

type trackRecord struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type deviceRecord struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ClassName string `json:"class_name"`
}

type parameterRecord struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Default     float64 `json:"default_value"`
	IsQuantized bool    `json:"is_quantized"`
	Value       float64 `json:"value"`
}

type browserRecord struct {
	Name       string          `json:"name"`
	URI        string          `json:"uri"`
	IsLoadable bool            `json:"is_loadable"`
	Children   []browserRecord `json:"children"`
}

func (s *Song) Tracks() []live.Track {
	resp := s.mustDo("get_tracks", nil)
	var body struct {
		Tracks []trackRecord `json:"tracks"`
	}
	if err := resp.DecodeInto(&body); err != nil {
		panic(err.Error())
	}
	out := make([]live.Track, len(body.Tracks))
	for i, rec := range body.Tracks {
		out[i] = &remoteTrack{song: s, index: rec.Index, name: rec.Name}
	}
	return out
}

func (s *Song) SelectedTrack() live.Track {
	resp := s.mustDo("get_selected_track", nil)
	var body struct {
		Track *trackRecord `json:"track"`
	}
	if err := resp.DecodeInto(&body); err != nil {
		panic(err.Error())
	}
	if body.Track == nil {
		return nil
	}
	return &remoteTrack{song: s, index: body.Track.Index, name: body.Track.Name}
}

func (s *Song) SelectTrack(t live.Track) error {
	rt, ok := t.(*remoteTrack)
	if !ok {
		return fmt.Errorf("select_track: foreign track %q", t.Name())
	}
	_, err := s.doErr("select_track", map[string]any{"track_index": rt.index})
	return err
}

func (s *Song) MoveDevice(d live.Device, t live.Track, index int) error {
	rd, ok := d.(*remoteDevice)
	if !ok {
		return fmt.Errorf("move_device: foreign device %q", d.Name())
	}
	rt, ok := t.(*remoteTrack)
	if !ok {
		return fmt.Errorf("move_device: foreign track %q", t.Name())
	}
	_, err := s.doErr("move_device", map[string]any{
		"track_index":  rt.index,
		"device_index": rd.index,
		"target_index": index,
	})
	return err
}

func (s *Song) BrowserRoots() []live.BrowserItem {
	resp := s.mustDo("get_browser_tree", nil)
	var body struct {
		Roots []browserRecord `json:"roots"`
	}
	if err := resp.DecodeInto(&body); err != nil {
		panic(err.Error())
	}
	out := make([]live.BrowserItem, len(body.Roots))
	for i := range body.Roots {
		out[i] = &remoteItem{rec: body.Roots[i]}
	}
	return out
}

func (s *Song) LoadBrowserItem(item live.BrowserItem) error {
	ri, ok := item.(*remoteItem)
	if !ok {
		return fmt.Errorf("load_browser_item: foreign item %q", item.Name())
	}
	_, err := s.doErr("load_browser_item", map[string]any{"uri": ri.rec.URI})
	return err
}

type remoteTrack struct {
	song  *Song
	index int
	name  string
}

func (t *remoteTrack) Name() string { return t.name }

// Index reports the track's ordinal in the host document. Wrappers are
// re-allocated on every listing, so consumers resolve ordinals through this
// instead of pointer identity.
func (t *remoteTrack) Index() int { return t.index }

func (t *remoteTrack) Devices() []live.Device {
	resp := t.song.mustDo("get_track_devices", map[string]any{"track_index": t.index})
	var body struct {
		Devices []deviceRecord `json:"devices"`
	}
	if err := resp.DecodeInto(&body); err != nil {
		panic(err.Error())
	}
	out := make([]live.Device, len(body.Devices))
	for i, rec := range body.Devices {
		out[i] = &remoteDevice{track: t, index: rec.Index, name: rec.Name, class: rec.ClassName}
	}
	return out
}

type remoteDevice struct {
	track *remoteTrack
	index int
	name  string
	class string
}

func (d *remoteDevice) Name() string      { return d.name }
func (d *remoteDevice) ClassName() string { return d.class }

func (d *remoteDevice) Parameters() []live.Parameter {
	resp := d.track.song.mustDo("get_device_parameters", map[string]any{
		"track_index":  d.track.index,
		"device_index": d.index,
	})
	var body struct {
		Parameters []parameterRecord `json:"parameters"`
	}
	if err := resp.DecodeInto(&body); err != nil {
		panic(err.Error())
	}
	out := make([]live.Parameter, len(body.Parameters))
	for i, rec := range body.Parameters {
		out[i] = &remoteParameter{device: d, rec: rec}
	}
	return out
}

// remoteParameter snapshots the static metadata (name, range, quantization)
// at listing time and round-trips only for the live value, mutation and
// display rendering.
type remoteParameter struct {
	device *remoteDevice
	rec    parameterRecord
}

func (p *remoteParameter) Name() string          { return p.rec.Name }
func (p *remoteParameter) Min() float64          { return p.rec.Min }
func (p *remoteParameter) Max() float64          { return p.rec.Max }
func (p *remoteParameter) DefaultValue() float64 { return p.rec.Default }
func (p *remoteParameter) IsQuantized() bool     { return p.rec.IsQuantized }

func (p *remoteParameter) target() map[string]any {
	return map[string]any{
		"track_index":  p.device.track.index,
		"device_index": p.device.index,
		"param_index":  p.rec.Index,
	}
}

func (p *remoteParameter) Value() float64 {
	resp := p.device.track.song.mustDo("get_parameter_value", p.target())
	var body struct {
		Value float64 `json:"value"`
	}
	if err := resp.DecodeInto(&body); err != nil {
		panic(err.Error())
	}
	return body.Value
}

func (p *remoteParameter) SetValue(v float64) error {
	params := p.target()
	params["value"] = v
	_, err := p.device.track.song.doErr("set_parameter_value", params)
	return err
}

func (p *remoteParameter) DisplayValue(v float64) string {
	params := p.target()
	params["value"] = v
	resp := p.device.track.song.mustDo("str_for_value", params)
	var body struct {
		Display string `json:"display"`
	}
	if err := resp.DecodeInto(&body); err != nil {
		panic(err.Error())
	}
	return body.Display
}

type remoteItem struct {
	rec browserRecord
}

func (it *remoteItem) Name() string     { return it.rec.Name }
func (it *remoteItem) IsLoadable() bool { return it.rec.IsLoadable }

func (it *remoteItem) Children() []live.BrowserItem {
	out := make([]live.BrowserItem, len(it.rec.Children))
	for i := range it.rec.Children {
		out[i] = &remoteItem{rec: it.rec.Children[i]}
	}
	return out
}

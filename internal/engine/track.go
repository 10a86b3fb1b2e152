package engine

import (
	"sort"
	"strings"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// TargetSelector describes which track an operation should act on. Index
// takes precedence over name; with neither set the host's current selection
// is used, even when UseSelectedTrack is explicitly false.
type TargetSelector struct {
	UseSelectedTrack *bool  `json:"use_selected_track,omitempty"`
	TrackIndex       *int   `json:"track_index,omitempty"`
	TrackName        string `json:"track_name,omitempty"`
}

// TrackRef identifies a resolved track in result payloads.
type TrackRef struct {
	TrackIndex int    `json:"track_index"`
	TrackName  string `json:"track_name"`
}

// ambiguityMargin is the minimum score gap between the two best fuzzy track
// candidates. Anything closer fails as ambiguous instead of guessing.
const ambiguityMargin = 0.25

// resolveTrackTarget turns a selector into exactly one track.
func (e *Engine) resolveTrackTarget(target *TargetSelector) (live.Track, int, error) {
	if target == nil {
		target = &TargetSelector{}
	}

	if target.TrackIndex != nil {
		idx := *target.TrackIndex
		tracks := e.song.Tracks()
		if idx < 0 || idx >= len(tracks) {
			return nil, -1, errf(KindInvalidTarget, "invalid track_index %d", idx)
		}
		return tracks[idx], idx, nil
	}

	if strings.TrimSpace(target.TrackName) != "" {
		track, idx, err := e.resolveTrackByName(target.TrackName)
		if err != nil {
			return nil, -1, err
		}
		return track, idx, nil
	}

	// No index and no name: fall back to the selection regardless of
	// use_selected_track, matching the documented quirk.
	track := e.song.SelectedTrack()
	if track == nil {
		return nil, -1, errf(KindNoSelection, "no selected track")
	}
	return track, e.trackIndex(track), nil
}

// resolveTrackByName matches a free-text track name. Exact
// (case/whitespace-insensitive) matches win outright; exact duplicates are
// ambiguous, never silently resolved. Otherwise fuzzy scoring picks the best
// candidate unless the runner-up is within ambiguityMargin.
func (e *Engine) resolveTrackByName(query string) (live.Track, int, error) {
	trimmed := strings.ToLower(strings.TrimSpace(query))
	if trimmed == "" {
		return nil, -1, errf(KindInvalidTarget, "empty track_name")
	}
	tracks := e.song.Tracks()

	exactIdx := -1
	exactCount := 0
	for idx, tr := range tracks {
		if strings.ToLower(strings.TrimSpace(tr.Name())) == trimmed {
			exactCount++
			if exactIdx < 0 {
				exactIdx = idx
			}
		}
	}
	if exactCount == 1 {
		return tracks[exactIdx], exactIdx, nil
	}
	if exactCount > 1 {
		return nil, -1, errf(KindAmbiguousTarget, "track name %q matches %d tracks exactly", query, exactCount)
	}

	queryNorm := strings.Join(trackTokens(trimmed), "")
	type candidate struct {
		score float64
		idx   int
	}
	var scored []candidate
	for idx, tr := range tracks {
		score := scoreTrackNameMatch(queryNorm, tr.Name())
		if score > 0 {
			scored = append(scored, candidate{score: score, idx: idx})
		}
	}
	if len(scored) == 0 {
		return nil, -1, errf(KindInvalidTarget, "track %q not found", query)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].idx < scored[j].idx
	})
	if len(scored) > 1 && scored[0].score-scored[1].score < ambiguityMargin {
		return nil, -1, errf(KindAmbiguousTarget, "track name %q is ambiguous", query)
	}
	best := scored[0]
	return tracks[best.idx], best.idx, nil
}

// scoreTrackNameMatch ranks a candidate track name against a normalized
// query: equality 5, query-in-candidate 2.5, candidate-in-query 2, otherwise
// the shared-token count.
func scoreTrackNameMatch(queryNorm, candidateName string) float64 {
	candidateTokens := trackTokens(candidateName)
	candidateNorm := strings.Join(candidateTokens, "")
	if candidateNorm == "" {
		return 0
	}
	if queryNorm == candidateNorm {
		return 5
	}
	if strings.Contains(candidateNorm, queryNorm) {
		return 2.5
	}
	if strings.Contains(queryNorm, candidateNorm) {
		return 2
	}

	querySet := tokenSet(queryNorm)
	candidateSet := make(map[string]bool, len(candidateTokens))
	for _, t := range candidateTokens {
		candidateSet[t] = true
	}
	if len(querySet) == 0 || len(candidateSet) == 0 {
		return 0
	}
	overlap := 0
	for t := range candidateSet {
		if querySet[t] {
			overlap++
		}
	}
	return float64(overlap)
}

// trackIndex locates a track's ordinal in the song, -1 if it vanished.
// Tracks that know their own ordinal report it directly; remote adapters
// hand out fresh wrappers per call, so an identity scan would never match
// them. Other implementations are scanned by identity.
func (e *Engine) trackIndex(track live.Track) int {
	if ix, ok := track.(interface{ Index() int }); ok {
		return ix.Index()
	}
	for idx, tr := range e.song.Tracks() {
		if tr == track {
			return idx
		}
	}
	return -1
}

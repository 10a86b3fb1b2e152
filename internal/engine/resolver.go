package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// MatchKind records which resolution strategy produced a parameter match.
type MatchKind string

const (
	MatchExact MatchKind = "exact" // normalized-name index hit on the raw query
	MatchRule  MatchKind = "rule"  // EQ band-field pattern expansion
	MatchAlias MatchKind = "alias" // curated synonym table
	MatchFuzzy MatchKind = "fuzzy" // containment/token-overlap scoring
	MatchNone  MatchKind = ""
)

// ResolutionTrace is the immutable diagnostic record of one parameter
// resolution attempt: what was asked, what was tried, and what won.
type ResolutionTrace struct {
	MatchedBy         MatchKind `json:"matched_by"`
	Query             string    `json:"query"`
	NormalizedQuery   string    `json:"normalized_query"`
	CandidateChain    []string  `json:"candidate_chain"`
	ResolvedParamName string    `json:"resolved_param_name,omitempty"`
}

// eqParameterAliases maps curated synonyms to ordered canonical candidate
// names for an 8-band parametric EQ, preferring the "A"-channel variant.
var eqParameterAliases = map[string][]string{
	"1type":              {"1 Filter Type A", "1 Filter Type", "1 Mode A", "1 Mode"},
	"1filtertype":        {"1 Filter Type A", "1 Filter Type", "1 Mode A", "1 Mode"},
	"band1type":          {"1 Filter Type A", "1 Filter Type", "1 Mode A", "1 Mode"},
	"8type":              {"8 Filter Type A", "8 Filter Type", "8 Mode A", "8 Mode"},
	"8filtertype":        {"8 Filter Type A", "8 Filter Type", "8 Mode A", "8 Mode"},
	"band8type":          {"8 Filter Type A", "8 Filter Type", "8 Mode A", "8 Mode"},
	"lowshelfgain":       {"1 Gain A", "1 Gain"},
	"lowshelffrequency":  {"1 Frequency A", "1 Frequency"},
	"lowshelffreq":       {"1 Frequency A", "1 Frequency"},
	"bassfrequency":      {"1 Frequency A", "1 Frequency"},
	"bassfreq":           {"1 Frequency A", "1 Frequency"},
	"lowshelfq":          {"1 Q A", "1 Q"},
	"bassq":              {"1 Q A", "1 Q"},
	"highshelfgain":      {"8 Gain A", "8 Gain"},
	"highshelffrequency": {"8 Frequency A", "8 Frequency"},
	"highshelffreq":      {"8 Frequency A", "8 Frequency"},
	"treblefrequency":    {"8 Frequency A", "8 Frequency"},
	"treblefreq":         {"8 Frequency A", "8 Frequency"},
	"highshelfq":         {"8 Q A", "8 Q"},
	"trebleq":            {"8 Q A", "8 Q"},
}

// eqBandRe matches normalized band-field queries like "band8gain", "1type"
// or "3filterfreq": optional "band" prefix, band digit 1-8, optional
// "filter" infix, then the field.
var eqBandRe = regexp.MustCompile(`^(?:band)?([1-8])(?:filter)?(type|frequency|freq|gain|q)$`)

// eqBandRuleCandidates expands a normalized band-field query into the
// canonical parameter names for that band, "A"-channel variant first.
func eqBandRuleCandidates(normalizedQuery string) []string {
	m := eqBandRe.FindStringSubmatch(normalizedQuery)
	if m == nil {
		return nil
	}
	band, field := m[1], m[2]
	switch field {
	case "type":
		return []string{
			band + " Filter Type A",
			band + " Filter Type",
			band + " Mode A",
			band + " Mode",
		}
	case "frequency", "freq":
		return []string{band + " Frequency A", band + " Frequency"}
	case "gain":
		return []string{band + " Gain A", band + " Gain"}
	case "q":
		return []string{band + " Q A", band + " Q"}
	}
	return nil
}

// isEQEight detects an 8-band parametric EQ by normalized display name or
// class identifier.
func isEQEight(device live.Device) bool {
	name := normalizeName(device.Name())
	class := normalizeName(device.ClassName())
	return name == "eqeight" || class == "eq8" || class == "eqeight"
}

// buildParameterIndex maps normalized parameter names to their ordinal.
// First occurrence wins when normalized names collide.
func buildParameterIndex(parameters []live.Parameter) map[string]int {
	index := make(map[string]int, len(parameters))
	for i, p := range parameters {
		key := normalizeName(p.Name())
		if key == "" {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	return index
}

// resolveParameter maps a selector to exactly one parameter on the device.
// An explicit index is a bounds-checked direct lookup. A name runs the
// candidate chain (exact, then band rule and curated alias on EQ devices)
// against the normalized index, then falls back to fuzzy scoring across all
// parameter names. The trace records every candidate tried.
func resolveParameter(device live.Device, update ParameterUpdate) (live.Parameter, ResolutionTrace, error) {
	parameters := device.Parameters()
	trace := ResolutionTrace{Query: update.ParamName, NormalizedQuery: normalizeName(update.ParamName)}
	if len(parameters) == 0 {
		return nil, trace, errf(KindNoMatch, "device %q has no parameters", device.Name())
	}

	if update.ParamIndex != nil {
		idx := *update.ParamIndex
		if idx < 0 || idx >= len(parameters) {
			return nil, trace, errf(KindNoMatch, "param_index %d out of range", idx)
		}
		p := parameters[idx]
		trace.MatchedBy = MatchExact
		trace.Query = fmt.Sprintf("index:%d", idx)
		trace.ResolvedParamName = p.Name()
		return p, trace, nil
	}

	if trace.NormalizedQuery == "" {
		return nil, trace, errf(KindNoMatch, "missing parameter selector")
	}
	trace.CandidateChain = []string{update.ParamName}

	index := buildParameterIndex(parameters)
	if i, ok := index[trace.NormalizedQuery]; ok {
		trace.MatchedBy = MatchExact
		trace.ResolvedParamName = parameters[i].Name()
		return parameters[i], trace, nil
	}

	if isEQEight(device) {
		for _, candidate := range eqBandRuleCandidates(trace.NormalizedQuery) {
			trace.CandidateChain = append(trace.CandidateChain, candidate)
			if i, ok := index[normalizeName(candidate)]; ok {
				trace.MatchedBy = MatchRule
				trace.ResolvedParamName = parameters[i].Name()
				return parameters[i], trace, nil
			}
		}
		for _, candidate := range eqParameterAliases[trace.NormalizedQuery] {
			trace.CandidateChain = append(trace.CandidateChain, candidate)
			if i, ok := index[normalizeName(candidate)]; ok {
				trace.MatchedBy = MatchAlias
				trace.ResolvedParamName = parameters[i].Name()
				return parameters[i], trace, nil
			}
		}
	}

	if p := matchParameterFuzzy(parameters, trace.NormalizedQuery); p != nil {
		trace.MatchedBy = MatchFuzzy
		trace.ResolvedParamName = p.Name()
		return p, trace, nil
	}

	return nil, trace, errf(KindNoMatch, "parameter %q not found on %q", update.ParamName, device.Name())
}

// matchParameterFuzzy scores every parameter name by containment (+2) and
// shared-token count, returning the single highest-scoring positive match.
// Unlike track resolution there is no near-tie ambiguity guard: the first
// highest score found wins.
func matchParameterFuzzy(parameters []live.Parameter, queryNorm string) live.Parameter {
	queryTokens := tokenSet(queryNorm)

	var best live.Parameter
	bestScore := 0.0
	for _, p := range parameters {
		pnorm := normalizeName(p.Name())
		if pnorm == "" {
			continue
		}
		if queryNorm == pnorm {
			return p
		}

		score := 0.0
		if strings.Contains(pnorm, queryNorm) || strings.Contains(queryNorm, pnorm) {
			score += 2
		}
		for t := range tokenSet(pnorm) {
			if queryTokens[t] {
				score++
			}
		}
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best
}

package engine

import (
	"testing"

	"github.com/mparcell123/Ableton-MCP/internal/live/livetest"
)

// --- Band rule expansion ---

func TestEQBandRuleCandidates(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"band8gain", "8 Gain A"},
		{"8frequency", "8 Frequency A"},
		{"band1type", "1 Filter Type A"},
		{"3freq", "3 Frequency A"},
		{"band5q", "5 Q A"},
		{"2filtertype", "2 Filter Type A"},
	}
	for _, tc := range cases {
		got := eqBandRuleCandidates(tc.query)
		if len(got) == 0 || got[0] != tc.want {
			t.Errorf("eqBandRuleCandidates(%q) = %v, want first %q", tc.query, got, tc.want)
		}
	}
}

func TestEQBandRuleRejectsNonBandQueries(t *testing.T) {
	for _, q := range []string{"outputgain", "band9gain", "gain", "band8", ""} {
		if got := eqBandRuleCandidates(q); got != nil {
			t.Errorf("eqBandRuleCandidates(%q) = %v, want nil", q, got)
		}
	}
}

// --- Parameter index ---

func TestBuildParameterIndexFirstOccurrenceWins(t *testing.T) {
	dev := &livetest.Device{Params: []*livetest.Param{
		{ParamName: "1 Gain A"},
		{ParamName: "1-Gain-A"}, // same normalized key
	}}
	index := buildParameterIndex(dev.Parameters())
	if index["1gaina"] != 0 {
		t.Errorf("index[1gaina] = %d, want 0 (first occurrence)", index["1gaina"])
	}
}

// --- Resolution precedence ---

func TestResolveParameterExactBeatsAlias(t *testing.T) {
	// "1 Gain A" is also a curated-alias source via the band rule space;
	// the exact index hit must win before any expansion runs.
	dev := &livetest.Device{DeviceName: "EQ Eight", Class: "Eq8", Params: []*livetest.Param{
		{ParamName: "1 Gain A"},
		{ParamName: "8 Gain A"},
	}}

	param, trace, err := resolveParameter(dev, ParameterUpdate{ParamName: "1 Gain A"})
	if err != nil {
		t.Fatalf("resolveParameter failed: %v", err)
	}
	if param.Name() != "1 Gain A" {
		t.Errorf("resolved %q, want %q", param.Name(), "1 Gain A")
	}
	if trace.MatchedBy != MatchExact {
		t.Errorf("matched_by = %q, want %q", trace.MatchedBy, MatchExact)
	}
}

func TestResolveParameterBandRule(t *testing.T) {
	dev := livetest.NewEQEight()

	param, trace, err := resolveParameter(dev, ParameterUpdate{ParamName: "Band 8 Gain"})
	if err != nil {
		t.Fatalf("resolveParameter failed: %v", err)
	}
	if param.Name() != "8 Gain A" {
		t.Errorf("resolved %q, want %q", param.Name(), "8 Gain A")
	}
	if trace.MatchedBy != MatchRule {
		t.Errorf("matched_by = %q, want %q", trace.MatchedBy, MatchRule)
	}

	param, trace, err = resolveParameter(dev, ParameterUpdate{ParamName: "1 Type"})
	if err != nil {
		t.Fatalf("resolveParameter failed: %v", err)
	}
	if param.Name() != "1 Filter Type A" {
		t.Errorf("resolved %q, want %q", param.Name(), "1 Filter Type A")
	}
	if trace.MatchedBy != MatchRule {
		t.Errorf("matched_by = %q, want %q", trace.MatchedBy, MatchRule)
	}
}

func TestResolveParameterCuratedAlias(t *testing.T) {
	dev := livetest.NewEQEight()

	param, trace, err := resolveParameter(dev, ParameterUpdate{ParamName: "Low Shelf Gain"})
	if err != nil {
		t.Fatalf("resolveParameter failed: %v", err)
	}
	if param.Name() != "1 Gain A" {
		t.Errorf("resolved %q, want %q", param.Name(), "1 Gain A")
	}
	if trace.MatchedBy != MatchAlias {
		t.Errorf("matched_by = %q, want %q", trace.MatchedBy, MatchAlias)
	}
}

func TestResolveParameterRuleDisabledOffEQ(t *testing.T) {
	dev := &livetest.Device{DeviceName: "Compressor", Class: "Compressor2", Params: []*livetest.Param{
		{ParamName: "8 Gain A"},
	}}

	// Band-rule expansion only applies to EQ Eight devices: the same query
	// that resolves via rule on an EQ finds nothing here.
	_, trace, err := resolveParameter(dev, ParameterUpdate{ParamName: "Band 8 Gain"})
	if KindOf(err) != KindNoMatch {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindNoMatch)
	}
	if trace.MatchedBy != MatchNone {
		t.Errorf("matched_by = %q, want none", trace.MatchedBy)
	}
}

// --- Index selector ---

func TestResolveParameterByIndex(t *testing.T) {
	dev := &livetest.Device{Params: []*livetest.Param{
		{ParamName: "Threshold"},
		{ParamName: "Ratio"},
	}}

	param, _, err := resolveParameter(dev, ParameterUpdate{ParamIndex: intPtr(1)})
	if err != nil {
		t.Fatalf("resolveParameter failed: %v", err)
	}
	if param.Name() != "Ratio" {
		t.Errorf("resolved %q, want %q", param.Name(), "Ratio")
	}

	_, _, err = resolveParameter(dev, ParameterUpdate{ParamIndex: intPtr(9)})
	if KindOf(err) != KindNoMatch {
		t.Errorf("kind = %q, want %q", KindOf(err), KindNoMatch)
	}
}

// --- Fuzzy fallback ---

func TestResolveParameterFuzzyNoNearTieGuard(t *testing.T) {
	// Unlike tracks, parameter fuzzy matching silently picks the highest
	// scorer even with a close runner-up.
	dev := &livetest.Device{Params: []*livetest.Param{
		{ParamName: "Dry/Wet"},
		{ParamName: "Wet Gain"},
	}}

	param, _, err := resolveParameter(dev, ParameterUpdate{ParamName: "wet"})
	if err != nil {
		t.Fatalf("resolveParameter failed: %v", err)
	}
	if param.Name() != "Dry/Wet" {
		t.Errorf("resolved %q, want first highest %q", param.Name(), "Dry/Wet")
	}
}

func TestResolveParameterNoMatchTrace(t *testing.T) {
	dev := livetest.NewEQEight()

	_, trace, err := resolveParameter(dev, ParameterUpdate{ParamName: "flux capacitor"})
	if KindOf(err) != KindNoMatch {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindNoMatch)
	}
	if trace.MatchedBy != MatchNone {
		t.Errorf("matched_by = %q, want none", trace.MatchedBy)
	}
	if len(trace.CandidateChain) == 0 || trace.CandidateChain[0] != "flux capacitor" {
		t.Errorf("candidate chain %v should start with the raw query", trace.CandidateChain)
	}
}

package engine

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Band 8 Gain", "band8gain"},
		{"band-8 gain", "band8gain"},
		{"BAND 8 GAIN", "band8gain"},
		{"EQ Eight", "eqeight"},
		{"  ", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeName(tc.in); got != tc.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{"Band 8 Gain", "1 Filter Type A", "High-Pass 48dB", "drum BUS 2"}
	for _, in := range inputs {
		once := normalizeName(in)
		if twice := normalizeName(once); twice != once {
			t.Errorf("normalizeName not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestTrackTokensDropsStopWords(t *testing.T) {
	got := trackTokens("the Bass track")
	if len(got) != 1 || got[0] != "bass" {
		t.Errorf("trackTokens(\"the Bass track\") = %v, want [bass]", got)
	}
}

func TestTrackTokensKeepsAllWhenOnlyStopWords(t *testing.T) {
	got := trackTokens("the track")
	if len(got) != 2 {
		t.Errorf("trackTokens(\"the track\") = %v, want the full token list", got)
	}
}

func TestNormalizeDisplayText(t *testing.T) {
	if got := normalizeDisplayText("High-Pass  48dB"); got != "high pass 48db" {
		t.Errorf("normalizeDisplayText = %q, want %q", got, "high pass 48db")
	}
}

package protocol

import "testing"

func TestChipsString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		chips Chips
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1,000"},
		{1_010_000, "1,010,000"},
		{9_999_999, "9,999,999"},
		{10_000_000, "10.0M"},
		{12_340_000, "12.3M"},
		{12_345_000, "12.3M"},
		{100_000_000, "100.0M"},
	}

	for _, tt := range cases {
		if got := tt.chips.String(); got != tt.want {
			t.Errorf("Chips(%d).String() = %q, want %q", uint64(tt.chips), got, tt.want)
		}
	}
}

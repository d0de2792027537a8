package config

import "testing"

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5s", 5, false},
		{"2m", 120, false},
		{"1h", 3600, false},
		{"1d", 86400, false},
		{"2w", 1209600, false},
		{"1M", 2592000, false},
		{"1y", 31536000, false},
		{"", 0, true},
		{"s", 0, true},
		{"5", 0, true},
		{"5x", 0, true},
		{"-5s", 0, true},
		{"abcs", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDuration(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDuration(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

package player

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Ana", "ana"},
		{"  José  Müller ", "jose muller"},
		{"ÉLODIE\tN'Diaye", "elodie n'diaye"},
		{"Zoë\n", "zoe"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

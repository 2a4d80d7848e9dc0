package relevance

import "testing"

func TestAcceptBoundary(t *testing.T) {
	g := New(0)

	tests := []struct {
		similarity float64
		want       bool
	}{
		{0.40, true}, // boundary inclusive
		{0.39999, false},
		{0.41, true},
		{1.0, true},
		{0.0, false},
		{0.82, true},
		{0.28, false},
	}
	for _, tt := range tests {
		if got := g.Accept(tt.similarity); got != tt.want {
			t.Errorf("Accept(%v) = %v, want %v", tt.similarity, got, tt.want)
		}
	}
}

func TestCustomThreshold(t *testing.T) {
	g := New(0.55)
	if g.Accept(0.50) {
		t.Error("0.50 should fail a 0.55 gate")
	}
	if !g.Accept(0.55) {
		t.Error("threshold itself should pass")
	}
	if g.Threshold() != 0.55 {
		t.Errorf("Threshold() = %v", g.Threshold())
	}
}

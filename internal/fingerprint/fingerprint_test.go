package fingerprint

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is photosynthesis?", "what is photosynthesis?"},
		{"  What is photosynthesis?  ", "what is photosynthesis?"},
		{"What   is\tphotosynthesis?", "what is photosynthesis?"},
		{"WHAT IS PHOTOSYNTHESIS?", "what is photosynthesis?"},
		{"", ""},
		{"   \t\n  ", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestStability verifies the cache-key invariant: case, surrounding
// whitespace, and whitespace run-length never change the fingerprint.
func TestStability(t *testing.T) {
	base := Of("What is photosynthesis?")

	variants := []string{
		"what is photosynthesis?",
		"  What is photosynthesis?",
		"What  is  photosynthesis?\n",
		"WHAT\tIS  PHOTOSYNTHESIS?",
	}
	for _, v := range variants {
		if Of(v) != base {
			t.Errorf("fingerprint of %q differs from base", v)
		}
	}
}

func TestDistinctQuestionsDiffer(t *testing.T) {
	if Of("What is photosynthesis?") == Of("What is mitosis?") {
		t.Error("distinct questions produced the same fingerprint")
	}
}

func TestOfIsHex(t *testing.T) {
	fp := Of("hello")
	if len(fp) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(fp))
	}
}

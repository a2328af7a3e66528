package main

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "string shorter than max",
			input:  "cache",
			maxLen: 10,
			want:   "cache",
		},
		{
			name:   "string equal to max",
			input:  "cache",
			maxLen: 5,
			want:   "cache",
		},
		{
			name:   "string longer than max",
			input:  "cache invalidation",
			maxLen: 8,
			want:   "cache...",
		},
		{
			name:   "very short max",
			input:  "cache",
			maxLen: 3,
			want:   "...",
		},
		{
			name:   "empty string",
			input:  "",
			maxLen: 10,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestReadInputFromArg(t *testing.T) {
	got, err := readInput([]string{"Plan /thought[alpha] done"})
	if err != nil {
		t.Fatalf("readInput() error = %v", err)
	}
	if got != "Plan /thought[alpha] done" {
		t.Errorf("readInput() = %q, want the argument verbatim", got)
	}
}

package handler

import (
	"testing"
	"time"
)

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"", time.Time{}},
		{"not-a-date", time.Time{}},
		{"2025-06-15", time.Date(2025, 6, 15, 0, 0, 0, 0, time.Local)},
		{"2025-06-15T14:30:05Z", time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC)},
		{"15-06-2025", time.Time{}},
	}

	for _, tt := range tests {
		result := parseTime(tt.input)
		if !result.Equal(tt.expected) {
			t.Errorf("parseTime(%q) = %v, expected %v", tt.input, result, tt.expected)
		}
	}
}

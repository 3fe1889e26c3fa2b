package video

import (
	"context"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"25/1", 25, false},
		{"30/1", 30, false},
		{"60", 60, false},
		{"0/1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseFrameRate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseFrameRate(%q): expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFrameRate(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFrameRate(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{9, "00:09"},
		{10, "00:10"},
		{59, "00:59"},
		{60, "01:00"},
		{61, "01:01"},
		{125, "02:05"},
	}

	for _, tt := range tests {
		if got := formatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("formatTimestamp(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestWindowCountDropsPartialWindow(t *testing.T) {
	// total = frames/fps - 1, same rule the dataset tooling uses
	tests := []struct {
		frames, fps, want int
	}{
		{250, 25, 9},
		{275, 25, 10},
		{24, 25, 0},
		{25, 25, 0},
		{50, 25, 1},
	}

	for _, tt := range tests {
		total := tt.frames/tt.fps - 1
		if total < 0 {
			total = 0
		}
		if total != tt.want {
			t.Errorf("windows(frames=%d, fps=%d) = %d, want %d", tt.frames, tt.fps, total, tt.want)
		}
	}
}

func TestSelectEvenly(t *testing.T) {
	frames := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}

	got := selectEvenly(frames, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	if got[0] != "a" || got[2] != "j" {
		t.Errorf("expected first and last frames selected, got %v", got)
	}

	// Deterministic: same input, same selection
	again := selectEvenly(frames, 3)
	for i := range got {
		if got[i] != again[i] {
			t.Fatalf("selection not deterministic: %v vs %v", got, again)
		}
	}

	if got := selectEvenly(frames[:2], 3); len(got) != 2 {
		t.Errorf("expected all frames when fewer than count, got %v", got)
	}
	if got := selectEvenly(frames, 1); len(got) != 1 || got[0] != "a" {
		t.Errorf("count=1 should return first frame, got %v", got)
	}
	if got := selectEvenly(frames, 0); got != nil {
		t.Errorf("count=0 should return nil, got %v", got)
	}
}

func TestNextEnforcesOrder(t *testing.T) {
	s := &WindowSource{fps: 25, total: 10, next: 0}

	if _, err := s.Next(context.Background(), 3); err == nil {
		t.Error("expected out-of-order window request to fail")
	}
	exhausted := &WindowSource{fps: 25, total: 10, next: 10}
	if _, err := exhausted.Next(context.Background(), 10); err == nil {
		t.Error("expected past-end window request to fail")
	}
}

package entity

import "testing"

func TestPushSettings_InQuietHours(t *testing.T) {
	tests := []struct {
		name  string
		start int
		end   int
		hour  int
		want  bool
	}{
		{"wrapping window late night", 22, 7, 23, true},
		{"wrapping window early morning", 22, 7, 3, true},
		{"wrapping window end exclusive", 22, 7, 7, false},
		{"wrapping window daytime", 22, 7, 10, false},
		{"plain window inside", 9, 17, 12, true},
		{"plain window start inclusive", 9, 17, 9, true},
		{"plain window end exclusive", 9, 17, 17, false},
		{"plain window evening", 9, 17, 20, false},
		{"degenerate window never suppresses", 8, 8, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &PushSettings{QuietEnabled: true, QuietStart: tt.start, QuietEnd: tt.end}
			if got := s.InQuietHours(tt.hour); got != tt.want {
				t.Errorf("InQuietHours(%d) with [%d,%d) = %v, want %v",
					tt.hour, tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestPushSettings_InQuietHours_Disabled(t *testing.T) {
	s := &PushSettings{QuietEnabled: false, QuietStart: 22, QuietEnd: 7}
	if s.InQuietHours(23) {
		t.Error("disabled quiet hours must never suppress")
	}
}

func TestDefaultPushSettings(t *testing.T) {
	s := DefaultPushSettings(42)
	if s.UserID != 42 || !s.QuietEnabled || s.QuietStart != 22 || s.QuietEnd != 7 || s.MaxPerDay != 10 {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

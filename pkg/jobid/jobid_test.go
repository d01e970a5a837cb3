package jobid

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	for _, kind := range []string{KindExport, KindRenderJob, KindPreview} {
		t.Run(kind, func(t *testing.T) {
			id := New(kind)
			if !strings.HasPrefix(id, kind+"-") {
				t.Errorf("New(%q) = %q, want prefix %q", kind, id, kind+"-")
			}
			if len(id) != idLen {
				t.Errorf("New(%q) length = %d, want %d", kind, len(id), idLen)
			}
			if !IsValid(id) {
				t.Errorf("New(%q) = %q does not parse", kind, id)
			}
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("New with unknown kind should panic")
		}
	}()
	New("zz")
}

func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		id := New(KindRenderJob)
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNewAtTimestamp(t *testing.T) {
	id := newAt(KindExport, time.UnixMilli(62))
	if got := id[3:7]; got != "0010" {
		t.Errorf("timestamp part = %q, want 0010", got)
	}
	wrapped := newAt(KindExport, time.UnixMilli(base62Max+1))
	if got := wrapped[3:7]; got != "0001" {
		t.Errorf("wrapped timestamp part = %q, want 0001", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"valid export", "ex-abcd1234", nil},
		{"valid render job", "rj-ZZZZ0000", nil},
		{"too short", "ex-abc", ErrInvalidFormat},
		{"missing dash", "exxabcd1234", ErrInvalidFormat},
		{"unknown kind", "em-abcd1234", ErrInvalidKind},
		{"bad characters", "ex-abcd12_4", ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Parse(%q) error = %v, want %v", tt.id, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.id, err)
			}
			if got.String() != tt.id || got.Timestamp != tt.id[3:7] || got.Random != tt.id[7:] {
				t.Errorf("Parse(%q) = %+v", tt.id, got)
			}
		})
	}
}

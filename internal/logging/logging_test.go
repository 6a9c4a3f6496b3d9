package logging

import "testing"

func TestNew(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		l, err := New("debug", format)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if !l.Core().Enabled(-1) {
			t.Fatalf("%s: expected debug to be enabled", format)
		}
	}
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected error for bad level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("expected error for bad format")
	}
}

package epub

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw  string
		want Version
		ok   bool
	}{
		{"2.0", Version{Major: 2}, true},
		{"3.0", Version{Major: 3}, true},
		{"3.2", Version{Major: 3, Minor: 2}, true},
		{"2", Version{Major: 2}, true},
		{" 3.0 ", Version{Major: 3}, true},
		{"1.0", Version{Major: 1}, false},
		{"4.0", Version{Major: 4}, false},
		{"3.-1", Version{}, false},
		{"abc", Version{}, false},
		{"3.x", Version{}, false},
		{"", Version{}, false},
	}
	for _, tt := range tests {
		got, ok := parseVersion(tt.raw)
		if ok != tt.ok {
			t.Errorf("parseVersion(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("parseVersion(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestVersionString(t *testing.T) {
	if got := EPUB2.String(); got != "2.0" {
		t.Errorf("EPUB2.String() = %q, want %q", got, "2.0")
	}
	if got := (Version{Major: 3, Minor: 2}).String(); got != "3.2" {
		t.Errorf("String() = %q, want %q", got, "3.2")
	}
}

func TestVersionAsMajor(t *testing.T) {
	v := Version{Major: 3, Minor: 2}
	if got := v.asMajor(); got != EPUB3 {
		t.Errorf("asMajor() = %v, want %v", got, EPUB3)
	}
}

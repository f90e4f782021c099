package domain

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "jane doe", "jane doe"},
		{"mixed case", "Jane Doe", "jane doe"},
		{"collapses whitespace", "Jane   Doe", "jane doe"},
		{"trims", "  amina yusuf ", "amina yusuf"},
		{"strips punctuation", "Jane Doe!", "jane doe"},
		{"hyphen joins tokens", "Jane-Doe", "janedoe"},
		{"keeps digits", "Candidate 42", "candidate 42"},
		{"tabs and newlines", "Jane\t\nDoe", "jane doe"},
		{"no-break space", "Jane\u00a0Doe", "jane doe"},
		{"unicode space separators", "Jane\u2003\u202f Doe", "jane doe"},
		{"drops accented letters", "José Núñez", "jos nez"},
		{"empty", "", ""},
		{"only symbols", "!!! ---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeName_Properties(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		f := func(s string) bool {
			once := NormalizeName(s)
			return NormalizeName(once) == once
		}
		assert.NoError(t, quick.Check(f, nil))
	})

	t.Run("output alphabet", func(t *testing.T) {
		f := func(s string) bool {
			for _, r := range NormalizeName(s) {
				if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ') {
					return false
				}
			}
			return true
		}
		assert.NoError(t, quick.Check(f, nil))
	})
}

func FuzzNormalizeName(f *testing.F) {
	for _, seed := range []string{"Jane Doe", "  amina  yusuf ", "José-María", "", " x y"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		once := NormalizeName(s)
		if NormalizeName(once) != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, NormalizeName(once))
		}
		if len(once) > 0 && (once[0] == ' ' || once[len(once)-1] == ' ') {
			t.Fatalf("untrimmed output %q", once)
		}
	})
}

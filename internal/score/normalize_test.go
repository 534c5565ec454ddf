package score_test

import (
	"testing"
	"unicode"

	"github.com/MrWong99/parlo/internal/score"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase", in: "Cansion", want: "cansion"},
		{name: "accents stripped", in: "canción", want: "cancion"},
		{name: "tilde n folds to n", in: "Año", want: "ano"},
		{name: "umlaut stripped", in: "Müller", want: "muller"},
		{name: "surrounding whitespace trimmed", in: "  casa \t\n", want: "casa"},
		{name: "interior space kept", in: "buenos dias", want: "buenos dias"},
		{name: "interior tab dropped", in: "buenos\tdias", want: "buenosdias"},
		{name: "digits dropped", in: "casa123", want: "casa"},
		{name: "punctuation dropped", in: "¡hola, qué tal!", want: "hola que tal"},
		{name: "empty", in: "", want: ""},
		{name: "letterless input collapses to empty", in: "123 !?", want: ""},
		{name: "mixed case accents", in: "CANCIÓN", want: "cancion"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := score.Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"", "canción", "  Hello, World!  ", "Año Nuevo", "ABC def GHI",
		"¿qué?", "naïve café", "x1y2z3", "\twaka waka\n", "123 !?",
		"a 1", "1 a",
	}
	for _, in := range inputs {
		once := score.Normalize(in)
		twice := score.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestNormalize_OutputCharset(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Canción 123!", "ÄÖÜ àèì", "hello-world_foo", "¿Cómo ESTÁS?",
		"tab\tand\nnewline", "ñandú", "42", "",
	}
	for _, in := range inputs {
		out := score.Normalize(in)
		for _, r := range out {
			if r == ' ' {
				continue
			}
			if !unicode.IsLetter(r) {
				t.Errorf("Normalize(%q) = %q contains non-letter %q", in, out, r)
			}
			if unicode.IsUpper(r) {
				t.Errorf("Normalize(%q) = %q contains uppercase %q", in, out, r)
			}
		}
	}
}

func TestNormalize_InvalidUTF8(t *testing.T) {
	t.Parallel()

	// A lone continuation byte decodes to U+FFFD, which is not a letter.
	in := "ca" + string([]byte{0xBF}) + "sa"
	if got := score.Normalize(in); got != "casa" {
		t.Errorf("Normalize(%q) = %q, want %q", in, got, "casa")
	}
}

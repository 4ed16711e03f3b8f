package knowledge

import "testing"

func TestNormalizeQuestion(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{name: "trims whitespace", in: "  Hello World  ", out: "hello world"},
		{name: "removes punctuation", in: "What's, the distance?", out: "what s the distance"},
		{name: "cyrillic lower-case", in: "Как ЗАБЛОКИРОВАТЬ карту?!", out: "как заблокировать карту"},
		{name: "folds yo", in: "Счёт", out: "счет"},
		{name: "punctuation only", in: "?!...", out: ""},
	}

	for _, tc := range cases {
		if got := NormalizeQuestion(tc.in); got != tc.out {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.out, got)
		}
	}
}

func TestWords(t *testing.T) {
	got := Words("Как открыть вклад?")
	if len(got) != 3 || got[0] != "как" || got[2] != "вклад" {
		t.Fatalf("unexpected words %v", got)
	}
}

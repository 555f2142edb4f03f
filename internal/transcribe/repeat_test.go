package transcribe

import "testing"

func TestCollapseRepeats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"untouched", "Olá.  Tudo bem?\nSim.", 2, "Olá.  Tudo bem?\nSim."},
		{"loop", "Legendas pela comunidade. Legendas pela comunidade. legendas pela comunidade. Fim!", 2, "Legendas pela comunidade. Legendas pela comunidade. Fim!"},
		{"max one", "Sim. Sim. Não. Não.", 1, "Sim. Não."},
		{"disabled", "a. a. a.", 0, "a. a. a."},
		{"ellipsis stays inside sentence", "Então... Então... Então... ok", 2, "Então... Então... ok"},
		{"no terminator", "sem pontuação", 2, "sem pontuação"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collapseRepeats(tt.in, tt.max); got != tt.want {
				t.Fatalf("collapseRepeats(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Um. Dois! Três? Quatro… cinco 3.5 seis")
	want := []string{"Um.", "Dois!", "Três?", "Quatro…", "cinco 3.5 seis"}
	if len(got) != len(want) {
		t.Fatalf("splitSentences() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

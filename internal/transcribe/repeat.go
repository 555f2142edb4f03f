package transcribe

import (
	"strings"
	"unicode"
)

// collapseRepeats keeps at most maxRepeats consecutive copies of the same
// sentence. Whisper models sometimes loop on silence and emit one phrase
// dozens of times. Text without such runs is returned unchanged.
// A non-positive maxRepeats disables the filter.
func collapseRepeats(text string, maxRepeats int) string {
	if maxRepeats <= 0 {
		return text
	}

	sentences := splitSentences(text)
	kept := make([]string, 0, len(sentences))
	dropped := false
	run := 0
	prev := ""
	for _, s := range sentences {
		key := strings.ToLower(s)
		if key == prev {
			run++
		} else {
			prev = key
			run = 1
		}
		if run > maxRepeats {
			dropped = true
			continue
		}
		kept = append(kept, s)
	}

	if !dropped {
		return text
	}
	return strings.Join(kept, " ")
}

// splitSentences cuts after ., !, ? or … when followed by whitespace or the end.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i, r := range runes {
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

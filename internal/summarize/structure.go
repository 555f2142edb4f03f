package summarize

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"audio-digest/internal/domain"
)

const (
	HeadingExecutive   = "## 📋 Resumo Executivo"
	HeadingKeyPoints   = "## 🔑 Pontos-Chave"
	HeadingConclusions = "## 🎯 Conclusões e Ações"

	maxFallbackPoints  = 5
	fallbackExecutive  = "Não foi possível gerar um resumo executivo a partir da transcrição."
	fallbackKeyPoint   = "Nenhum ponto-chave identificado."
	fallbackConclusion = "Nenhuma conclusão ou ação explícita foi identificada na transcrição."
)

type section int

const (
	sectionNone section = iota
	sectionExecutive
	sectionKeyPoints
	sectionConclusions
)

// EnforceStructure normalises model output to exactly the three summary
// sections in fixed order. Missing sections are filled deterministically from
// the unheaded text and the partial summaries. The result is a fixed point:
// EnforceStructure(EnforceStructure(x)) == EnforceStructure(x).
func EnforceStructure(text string, partials []domain.PartialSummary) string {
	parts := map[section][]string{}
	current := sectionNone
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if s := classifyHeading(line); s != sectionNone {
			current = s
			continue
		}
		parts[current] = append(parts[current], line)
	}

	executive := block(parts[sectionExecutive])
	if executive == "" {
		executive = block(parts[sectionNone])
	}
	if executive == "" {
		executive = firstParagraph(partials)
	}
	if executive == "" {
		executive = fallbackExecutive
	}

	points := listItems(parts[sectionKeyPoints])
	if len(points) == 0 {
		points = fallbackPoints(partials)
	}
	if len(points) == 0 {
		points = []string{fallbackKeyPoint}
	}

	conclusions := block(parts[sectionConclusions])
	if conclusions == "" {
		conclusions = fallbackConclusion
	}

	var b strings.Builder
	b.WriteString(HeadingExecutive + "\n\n" + executive + "\n\n")
	b.WriteString(HeadingKeyPoints + "\n\n")
	for i, p := range points {
		b.WriteString(strconv.Itoa(i+1) + ". " + p + "\n")
	}
	b.WriteString("\n" + HeadingConclusions + "\n\n" + conclusions)
	return b.String()
}

// classifyHeading recognises Markdown or bold headings naming a section.
func classifyHeading(line string) section {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "#"):
	case len(trimmed) > 4 && strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**"):
	default:
		return sectionNone
	}

	key := normalizeHeading(trimmed)
	switch {
	case strings.Contains(key, "resumo executivo"):
		return sectionExecutive
	case strings.Contains(key, "pontos chave") || strings.Contains(key, "pontoschave"):
		return sectionKeyPoints
	case strings.HasPrefix(key, "conclus"):
		return sectionConclusions
	}
	return sectionNone
}

// normalizeHeading keeps lowercase letters and single spaces.
func normalizeHeading(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
			space = false
		case r == '-' || unicode.IsSpace(r):
			if !space && b.Len() > 0 {
				b.WriteRune(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func block(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// listItems turns each non-empty line into one item without its list marker.
func listItems(lines []string) []string {
	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		item := stripListMarker(strings.TrimSpace(line))
		return item, item != ""
	})
}

// stripListMarker removes "-", "*", "•" or "12." / "12)" prefixes.
func stripListMarker(line string) string {
	for _, m := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, m) {
			return strings.TrimSpace(line[len(m):])
		}
	}
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(line) && (line[digits] == '.' || line[digits] == ')') {
		if rest := line[digits+1:]; rest == "" || rest[0] == ' ' {
			return strings.TrimSpace(rest)
		}
	}
	return line
}

func isListLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && stripListMarker(trimmed) != trimmed
}

// fallbackPoints collects list lines from the partials, then first lines.
func fallbackPoints(partials []domain.PartialSummary) []string {
	var lines []string
	for _, p := range partials {
		lines = append(lines, lo.Filter(strings.Split(p.Text, "\n"), func(l string, _ int) bool {
			return isListLine(l)
		})...)
	}
	if len(lines) == 0 {
		lines = lo.FilterMap(partials, func(p domain.PartialSummary, _ int) (string, bool) {
			first := firstLine(p.Text)
			return first, first != ""
		})
	}

	points := lo.Uniq(listItems(lines))
	if len(points) > maxFallbackPoints {
		points = points[:maxFallbackPoints]
	}
	return points
}

// firstParagraph returns the first non-empty paragraph of the partials,
// without heading lines.
func firstParagraph(partials []domain.PartialSummary) string {
	for _, p := range partials {
		lines := lo.Filter(strings.Split(p.Text, "\n"), func(l string, _ int) bool {
			return classifyHeading(l) == sectionNone
		})
		para, _, _ := strings.Cut(strings.TrimSpace(strings.Join(lines, "\n")), "\n\n")
		if para = strings.TrimSpace(para); para != "" {
			return para
		}
	}
	return ""
}

func firstLine(text string) string {
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

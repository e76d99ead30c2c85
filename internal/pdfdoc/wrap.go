package pdfdoc

import "strings"

// Wrap breaks text into lines no wider than maxWidth as measured by measure. Words are
// placed greedily; a word wider than maxWidth on its own is split between runes, so
// only a single rune can ever exceed the limit. Blank text yields no lines.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := ""
	for _, word := range words {
		if line != "" {
			candidate := line + " " + word
			if measure(candidate) <= maxWidth {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = ""
		}
		if measure(word) <= maxWidth {
			line = word
			continue
		}
		chunks := splitWord(word, maxWidth, measure)
		lines = append(lines, chunks[:len(chunks)-1]...)
		line = chunks[len(chunks)-1]
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func splitWord(word string, maxWidth float64, measure func(string) float64) []string {
	var chunks []string
	current := ""
	for _, r := range word {
		candidate := current + string(r)
		if current != "" && measure(candidate) > maxWidth {
			chunks = append(chunks, current)
			candidate = string(r)
		}
		current = candidate
	}
	return append(chunks, current)
}

// truncateToWidth shortens text so that text+suffix fits in maxWidth.
func truncateToWidth(text, suffix string, maxWidth float64, measure func(string) float64) string {
	runes := []rune(strings.TrimSpace(text))
	for len(runes) > 0 && measure(string(runes)+suffix) > maxWidth {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimSpace(string(runes)) + suffix
}

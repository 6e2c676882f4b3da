package pipeline

import (
	"regexp"
	"strings"
	"sync"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

var regexCache sync.Map // pattern -> *regexp.Regexp

func compiled(pattern string) (*regexp.Regexp, bool) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), true
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	regexCache.Store(pattern, re)
	return re, true
}

// Transform computes the body of a copied message.
// Replacements are exact, case-sensitive substitutions unless marked as regex.
func Transform(s types.JobSettings, text string) string {
	for _, rep := range s.Replacements {
		if rep.Old == "" {
			continue
		}
		if rep.Regex {
			if re, ok := compiled(rep.Old); ok {
				text = re.ReplaceAllString(text, rep.New)
			}
			continue
		}
		text = strings.ReplaceAll(text, rep.Old, rep.New)
	}

	if s.RemoveLinks {
		text = StripLinks(text)
	}

	if len(s.RemoveLinesWith) > 0 || s.RemoveEmptyLines {
		lines := strings.Split(text, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if s.RemoveEmptyLines && strings.TrimSpace(line) == "" {
				continue
			}
			if lineHasAny(line, s.RemoveLinesWith) {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.Join(kept, "\n")
	}

	if s.Header != "" {
		text = s.Header + "\n\n" + text
	}
	if s.Footer != "" {
		text = text + "\n\n" + s.Footer
	}
	return text
}

func lineHasAny(line string, words []string) bool {
	for _, w := range words {
		if Contains(line, w) {
			return true
		}
	}
	return false
}

func StripLinks(text string) string {
	text = urlRe.ReplaceAllString(text, "")
	text = handleRe.ReplaceAllString(text, "${1}")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
	}
	return strings.Join(lines, "\n")
}

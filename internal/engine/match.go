package engine

import (
	"strings"
	"unicode/utf8"
)

// Short single-word answers (years, "гранит") match by containment in the
// player's answer; longer ones additionally tolerate the player typing a
// prefix or inflected fragment.
const shortAnswerRunes = 6

// Matches reports whether the player's answer satisfies any of the accepted
// answers. An empty submission never matches. Per accepted answer, in order:
// exact normalized equality; for multi-word answers, every word longer than
// one rune must appear somewhere in the player's answer (word order and
// extra words are tolerated); for single-word answers, containment as
// described above. The first accepted answer that matches wins.
func Matches(userAnswer string, acceptedAnswers []string) bool {
	ua := Normalize(userAnswer)
	if ua == "" {
		return false
	}

	for _, a := range acceptedAnswers {
		an := Normalize(a)
		if an == "" {
			continue
		}
		if an == ua {
			return true
		}

		words := significantWords(an)
		if len(words) >= 2 {
			if containsAll(ua, words) {
				return true
			}
			continue
		}

		if utf8.RuneCountInString(an) <= shortAnswerRunes {
			if strings.Contains(ua, an) {
				return true
			}
			continue
		}
		if strings.Contains(ua, an) || strings.Contains(an, ua) {
			return true
		}
	}
	return false
}

// significantWords splits a normalized answer on spaces and drops one-rune
// tokens (prepositions, initials) that would match almost anything.
func significantWords(normalized string) []string {
	fields := strings.Split(normalized, " ")
	words := fields[:0]
	for _, w := range fields {
		if utf8.RuneCountInString(w) > 1 {
			words = append(words, w)
		}
	}
	return words
}

func containsAll(haystack string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}

// Package quality rejects noise, hallucinated and inappropriate transcript
// text before it reaches any subscriber. Checks are independent; the first
// matching rule rejects.
package quality

import (
	"strings"
	"unicode"
)

// Sign-off and filler phrases that speech models emit for silence or music.
var hallucinationPatterns = []string{
	"thanks for watching",
	"thank you for watching",
	"thank you so much for watching",
	"please subscribe",
	"like and subscribe",
	"see you next time",
	"see you in the next video",
	"구독과 좋아요",
	"시청해 주셔서 감사합니다",
	"다음 영상에서 만나요",
	"[music]",
	"[applause]",
	"[silence]",
	"(music)",
	"♪",
}

var fillerTokens = map[string]bool{
	"uh":   true,
	"um":   true,
	"ah":   true,
	"eh":   true,
	"mm":   true,
	"hmm":  true,
	"mhm":  true,
	"erm":  true,
	"huh":  true,
	"어":    true,
	"음":    true,
	"그":    true,
	"저기":   true,
}

// Substring denylist, matched case-insensitively against the whole utterance.
var profanityList = []string{
	"fuck",
	"shit",
	"bitch",
	"asshole",
	"bastard",
	"씨발",
	"개새끼",
	"병신",
}

const minMeaningfulRatio = 0.6

// Accept reports whether text is worth delivering. Deterministic, no side
// effects.
func Accept(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 3 {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range hallucinationPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}

	if isDigitsOnly(trimmed) {
		return false
	}

	if meaningfulRatio(trimmed) < minMeaningfulRatio {
		return false
	}

	if hasLongRun(trimmed, 4) {
		return false
	}

	words := strings.Fields(lower)
	if len(words) == 1 && len([]rune(words[0])) < 4 {
		return false
	}

	if len(words) > 0 {
		filler := 0
		for _, w := range words {
			if fillerTokens[strings.Trim(w, ".,!?")] {
				filler++
			}
		}
		if filler*2 > len(words) {
			return false
		}
	}

	for _, bad := range profanityList {
		if strings.Contains(lower, bad) {
			return false
		}
	}

	return true
}

func isDigitsOnly(s string) bool {
	seen := false
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		if !unicode.IsDigit(r) {
			return false
		}
		seen = true
	}
	return seen
}

// meaningfulRatio is the fraction of letters, digits and spaces among all
// runes. Hangul counts as letters, so mixed ko/en text passes.
func meaningfulRatio(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	meaningful := 0
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			meaningful++
		}
	}
	return float64(meaningful) / float64(len(runes))
}

// hasLongRun reports whether any rune repeats at least n times in a row.
func hasLongRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

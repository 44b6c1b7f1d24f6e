package syncer

import (
	"regexp"
	"strings"
)

// mentionRe captures a mention marker followed by one to four words
var mentionRe = regexp.MustCompile(`@([\p{L}\p{N}_]+(?: [\p{L}\p{N}_]+){0,3})`)

// DetectMention reports whether text contains an @-style reference to the
// current user's display name. A candidate matches when either string
// contains the other after case normalization. Pure function of its inputs:
// safe to re-evaluate across redundant notification paths.
func DetectMention(text, displayName string) bool {
	name := strings.ToLower(strings.TrimSpace(displayName))
	if name == "" {
		return false
	}

	for _, match := range mentionRe.FindAllStringSubmatch(text, -1) {
		words := strings.Fields(strings.ToLower(match[1]))
		for n := 1; n <= len(words); n++ {
			candidate := strings.Join(words[:n], " ")
			if strings.Contains(candidate, name) || strings.Contains(name, candidate) {
				return true
			}
		}
	}
	return false
}

// Package media classifies entry URLs and downloads their content
// through external fetch tools under a size ceiling.
package media

import (
	"strings"

	"red_bot/internal/config"
	"red_bot/internal/model"
)

// Classify maps a URL to a media kind using the configured suffix and
// prefix tables. Video patterns take precedence over image patterns.
// Unmatched URLs classify as MediaNone.
func Classify(rawURL string, pats config.Patterns) model.MediaKind {
	if matchesSet(rawURL, pats.Video) {
		return model.MediaVideo
	}
	if matchesSet(rawURL, pats.Image) {
		return model.MediaImage
	}
	return model.MediaNone
}

func matchesSet(rawURL string, set config.PatternSet) bool {
	for _, s := range set.Suffixes {
		if strings.HasSuffix(rawURL, s) {
			return true
		}
	}
	for _, p := range set.Prefixes {
		if strings.HasPrefix(rawURL, p) {
			return true
		}
	}
	return false
}

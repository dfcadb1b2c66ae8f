package engine

import (
	"strings"

	"github.com/coreengine/internal/tables"
)

// groupCloud splits keyword/device matches into sub-commands. Each
// sub-command holds at most one keyword and one device; a repeated kind
// starts a new one. A sub-command that names only a device borrows the
// keyword of the sub-command before it.
func groupCloud(matches []tables.Match) string {
	var (
		segs           []string
		words          []string
		hasKey, hasDev bool
		lastKey        string
	)

	flush := func() {
		if len(words) == 0 {
			return
		}
		if hasDev && !hasKey && lastKey != "" {
			words = append([]string{lastKey}, words...)
		}
		segs = append(segs, strings.Join(words, " "))
		words, hasKey, hasDev = nil, false, false
	}

	for _, m := range matches {
		switch m.Kind {
		case tables.KindKeyword:
			if hasKey {
				flush()
			}
			hasKey = true
			lastKey = m.Name
		case tables.KindDevice:
			if hasDev {
				flush()
			}
			hasDev = true
		default:
			continue
		}
		words = append(words, m.Name)
	}
	flush()

	return strings.Join(segs, ",")
}

// groupLocal splits command/direction matches into sub-commands. Every
// command word opens a sub-command; a second direction opens a new one that
// repeats the last command word.
func groupLocal(matches []tables.Match) string {
	var (
		segs    []string
		words   []string
		hasDir  bool
		lastCmd string
	)

	flush := func() {
		if len(words) == 0 {
			return
		}
		segs = append(segs, strings.Join(words, " "))
		words, hasDir = nil, false
	}

	for _, m := range matches {
		switch m.Kind {
		case tables.KindCommand:
			flush()
			lastCmd = m.Name
		case tables.KindDirection:
			if hasDir {
				flush()
				if lastCmd != "" {
					words = append(words, lastCmd)
				}
			}
			hasDir = true
		default:
			continue
		}
		words = append(words, m.Name)
	}
	flush()

	return strings.Join(segs, ",")
}

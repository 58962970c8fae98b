package downloader

import "regexp"

var (
	// The mirror this tool is pointed at tags some uploads with this suffix.
	junkSuffixRe = regexp.MustCompile(`_ImSM8O$`)

	rawMarkerRe = regexp.MustCompile(`(?i)\s*\((Raw|Partial)\)\s*`)

	invalidCharRe = regexp.MustCompile(`[\\/*?:"<>|]`)
)

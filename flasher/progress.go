package flasher

import (
	"regexp"
	"strconv"
)

// esptool's write progress looks like "Writing at 0x00010000... (42%)".
// We scan for a decimal number immediately followed by a percent sign and
// take its integer floor. This is a best-effort parse of human-readable
// output; unmatched lines are simply not progress.
var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// parseProgress extracts a 0-100 progress percentage from one output line.
// The second return value reports whether the line contained one.
func parseProgress(line string) (int, bool) {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	pct := int(v)
	if pct < 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}

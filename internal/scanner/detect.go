package scanner

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"
)

// irHeader opens every function-graph dump.
const irHeader = "#IR entry"

// sniffLimit bounds how far into a file HasIRHeader looks.
const sniffLimit = 64 * 1024

// MatchExtension reports whether name ends in one of exts, ignoring case.
func MatchExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// HasIRHeader reports whether r starts a graph dump, i.e. whether one of its
// leading lines is an entry declaration. Only the first 64KiB are examined.
func HasIRHeader(r io.Reader) bool {
	sc := bufio.NewScanner(io.LimitReader(r, sniffLimit))
	sc.Buffer(make([]byte, 0, 4096), sniffLimit)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, irHeader) {
			return true
		}
		// dumps open with comments and blank lines only
		if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			return false
		}
	}
	return false
}

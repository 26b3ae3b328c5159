// internal/run/filename.go
package run

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

// fileStampLayout is the suffix that keeps synthesized names from colliding.
const fileStampLayout = "20060102-150405"

// knownExtensions are stripped before the export format's extension is added.
var knownExtensions = []string{".json", ".csv", ".xlsx", ".xls"}

// DeriveFileName returns the output file name for a run of p. A user file
// name that is blank, or nothing but known extensions, is synthesized from
// the target host and the time.
func DeriveFileName(p schemas.Profile, now time.Time) string {
	name := stripKnownExtensions(strings.TrimSpace(p.OutputFileName))
	if name == "" {
		name = hostStem(p.TargetURL) + "_" + now.Format(fileStampLayout)
	}
	return name + p.ExportFormat.Extension()
}

// hostStem extracts the host of a URL, with or without a scheme, minus a
// leading "www.".
func hostStem(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		u, err = url.Parse("https://" + raw)
	}
	host := ""
	if err == nil {
		host = strings.ToLower(u.Hostname())
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "extraction"
	}
	return host
}

func stripKnownExtensions(name string) string {
	for {
		ext := strings.ToLower(filepath.Ext(name))
		if !isKnownExtension(ext) {
			return name
		}
		name = name[:len(name)-len(ext)]
	}
}

func isKnownExtension(ext string) bool {
	for _, k := range knownExtensions {
		if ext == k {
			return true
		}
	}
	return false
}

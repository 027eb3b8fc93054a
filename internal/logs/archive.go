// Package logs turns raw workflow log archives into the incremental plaintext
// chunks delivered on a deployment stream.
package logs

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// timestampPrefix matches the ISO-8601 timestamp the CI runner injects at the
// start of every log line.
var timestampPrefix = regexp.MustCompile(`(?m)^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z `)

// Flatten decompresses a multi-file log archive into a single plaintext log.
// Files are concatenated in lexicographic filename order, which approximates
// chronological job/step order since the runner prefixes filenames with
// numeric step indexes. Per-line runner timestamps are stripped.
func Flatten(archive []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", fmt.Errorf("open log archive: %w", err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var b strings.Builder
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read archive entry %s: %w", f.Name, err)
		}

		cleaned := timestampPrefix.ReplaceAllString(string(data), "")
		fmt.Fprintf(&b, "\n=== %s ===\n%s\n", f.Name, cleaned)
	}

	return strings.TrimSpace(b.String()), nil
}

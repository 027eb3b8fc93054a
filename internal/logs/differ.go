package logs

import "strings"

// Differ tracks the log text already delivered for one run and computes the
// minimal next chunk to send. Archives are re-fetched in full each poll; most
// updates are pure appends, but a re-packaged archive (different file
// ordering, retried steps) can diverge from the baseline, in which case the
// whole log is re-sent as a replacement.
type Differ struct {
	baseline string
}

// Next compares the freshly fetched full log against the baseline. It returns
// the chunk to emit, whether the chunk replaces the client's displayed log,
// and whether there is anything to emit at all. The baseline advances to full
// whenever the content changed, even if the emitted chunk trims to nothing.
func (d *Differ) Next(full string) (chunk string, replace bool, ok bool) {
	switch {
	case full == "" || full == d.baseline:
		return "", false, false

	case len(full) > len(d.baseline) && strings.HasPrefix(full, d.baseline):
		chunk = strings.TrimSpace(full[len(d.baseline):])
		d.baseline = full
		if chunk == "" {
			return "", false, false
		}
		return chunk, false, true

	default:
		d.baseline = full
		return full, true, true
	}
}

// Baseline returns the full log text as currently known.
func (d *Differ) Baseline() string {
	return d.baseline
}

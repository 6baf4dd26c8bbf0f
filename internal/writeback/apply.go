package writeback

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/stategraph/stategraph/api"
)

// Spliced applies edits to src and returns the new buffer. Every edit's
// offsets address the original buffer; edits must be in-bounds and must not
// overlap, but may arrive in any order.
func Spliced(src []byte, edits []api.TextEdit) ([]byte, error) {
	sorted := make([]api.TextEdit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i, e := range sorted {
		if e.Start > e.End || int(e.End) > len(src) {
			return nil, fmt.Errorf("invalid byte range [%d:%d] for buffer of length %d", e.Start, e.End, len(src))
		}
		if i > 0 && sorted[i-1].End > e.Start {
			return nil, fmt.Errorf("overlapping edits at byte %d", e.Start)
		}
	}

	out := make([]byte, 0, len(src))
	prev := uint32(0)
	for _, e := range sorted {
		out = append(out, src[prev:e.Start]...)
		out = append(out, e.NewText...)
		prev = e.End
	}
	out = append(out, src[prev:]...)
	return out, nil
}

// Apply splices edits into the file at path. The write is atomic: content
// goes to a temp file in the same directory, permissions are carried over,
// then the temp file is renamed over the original.
func Apply(path string, edits []api.TextEdit) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read source %s: %w", path, err)
	}

	result, err := Spliced(src, edits)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stategraph-edit-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(result); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}

	// Preserve original file permissions
	info, err := os.Stat(path)
	if err == nil {
		_ = os.Chmod(tmpName, info.Mode()) // best-effort permission sync
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}

	return nil
}

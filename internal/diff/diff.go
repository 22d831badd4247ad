// Package diff computes per-file text diffs for evidence records and
// audit packs.
package diff

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileDiff is the diff of one file between its pre-image and post-image.
type FileDiff struct {
	Path      string `json:"path"`
	Patch     string `json:"patch"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changed   bool   `json:"changed"`
}

// Compute diffs a single file. The patch text is the diff-match-patch
// serialized form, which round-trips through PatchFromText.
func Compute(path, before, after string) FileDiff {
	fd := FileDiff{Path: path}
	if before == after {
		return fd
	}
	fd.Changed = true

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			fd.Additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			fd.Deletions += countLines(d.Text)
		}
	}

	patches := dmp.PatchMake(before, diffs)
	fd.Patch = dmp.PatchToText(patches)
	return fd
}

// ComputeAll diffs every file present in either map, in lexicographic
// path order. Files absent on one side diff against empty content.
func ComputeAll(before, after map[string]string) []FileDiff {
	paths := make(map[string]bool)
	for p := range before {
		paths[p] = true
	}
	for p := range after {
		paths[p] = true
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	out := make([]FileDiff, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, Compute(p, before[p], after[p]))
	}
	return out
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + boolToInt(!strings.HasSuffix(text, "\n"))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

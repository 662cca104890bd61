// Package diffing compares old and new section text and emits a
// materiality-filtered change set: paragraphs that appear only on one side,
// with cosmetic short edits suppressed.
package diffing

import (
	"strings"

	"github.com/tenkdelta/tenkdelta/internal/model"
)

// Changes shorter than this are minor wording, not material.
const defaultMinChangeLength = 50

// Engine is a deterministic paragraph-level diff engine implementing
// service.DiffEngine.
type Engine struct {
	minChangeLength int
}

// NewEngine creates a diff engine with the default materiality threshold.
func NewEngine() *Engine {
	return &Engine{minChangeLength: defaultMinChangeLength}
}

// Compare diffs every section present in either filing. Sections missing on
// one side are treated as fully added or fully removed.
func (e *Engine) Compare(oldSections, newSections map[string]string) model.DiffResult {
	result := model.DiffResult{Sections: make(map[string]model.SectionDiff)}

	for name, newText := range newSections {
		oldText, ok := oldSections[name]
		if !ok {
			oldText = ""
		}
		result.Sections[name] = e.compareSection(oldText, newText)
	}

	for name, oldText := range oldSections {
		if _, ok := newSections[name]; ok {
			continue
		}
		result.Sections[name] = e.compareSection(oldText, "")
	}

	return result
}

// compareSection aligns the two texts by paragraph. A paragraph counts as
// added or removed when its occurrence count differs between versions, so
// reordering alone never registers as a change.
func (e *Engine) compareSection(oldText, newText string) model.SectionDiff {
	oldParagraphs := splitParagraphs(oldText)
	newParagraphs := splitParagraphs(newText)

	oldCounts := countParagraphs(oldParagraphs)
	newCounts := countParagraphs(newParagraphs)

	var added, removed []string
	common := 0

	for _, para := range newParagraphs {
		if oldCounts[para] > 0 {
			oldCounts[para]--
			common++
			continue
		}
		if len(para) >= e.minChangeLength {
			added = append(added, para)
		}
	}

	for _, para := range oldParagraphs {
		if newCounts[para] > 0 {
			newCounts[para]--
			continue
		}
		if len(para) >= e.minChangeLength {
			removed = append(removed, para)
		}
	}

	return model.SectionDiff{
		Added:      added,
		Removed:    removed,
		Similarity: similarity(common, len(oldParagraphs), len(newParagraphs)),
		HasChanges: len(added) > 0 || len(removed) > 0,
	}
}

// similarity is the classic ratio: twice the matched count over the total
// number of paragraphs on both sides. Two empty texts are identical.
func similarity(common, oldLen, newLen int) float64 {
	total := oldLen + newLen
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(common) / float64(total)
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}

func countParagraphs(paragraphs []string) map[string]int {
	counts := make(map[string]int, len(paragraphs))
	for _, para := range paragraphs {
		counts[para]++
	}
	return counts
}

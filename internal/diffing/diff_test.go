package diffing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	paraA = "The company operates three reportable segments serving enterprise customers worldwide."
	paraB = "Revenue grew substantially across all geographic regions during the fiscal year."
	paraC = "A new cybersecurity risk was identified relating to third-party vendor access controls."
)

func TestCompare_IdenticalTextHasNoChanges(t *testing.T) {
	engine := NewEngine()
	text := paraA + "\n\n" + paraB

	result := engine.Compare(
		map[string]string{"Item 1": text},
		map[string]string{"Item 1": text},
	)

	require.Contains(t, result.Sections, "Item 1")
	diff := result.Sections["Item 1"]
	assert.False(t, diff.HasChanges)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Equal(t, 1.0, diff.Similarity)
}

func TestCompare_AddedAndRemovedParagraphs(t *testing.T) {
	engine := NewEngine()

	result := engine.Compare(
		map[string]string{"Item 1A": paraA + "\n\n" + paraB},
		map[string]string{"Item 1A": paraA + "\n\n" + paraC},
	)

	diff := result.Sections["Item 1A"]
	require.True(t, diff.HasChanges)
	assert.Equal(t, []string{paraC}, diff.Added)
	assert.Equal(t, []string{paraB}, diff.Removed)
	assert.InDelta(t, 0.5, diff.Similarity, 0.001)
}

func TestCompare_ReorderingIsNotAChange(t *testing.T) {
	engine := NewEngine()

	result := engine.Compare(
		map[string]string{"Item 7": paraA + "\n\n" + paraB + "\n\n" + paraC},
		map[string]string{"Item 7": paraC + "\n\n" + paraA + "\n\n" + paraB},
	)

	diff := result.Sections["Item 7"]
	assert.False(t, diff.HasChanges)
	assert.Equal(t, 1.0, diff.Similarity)
}

func TestCompare_ShortEditsAreSuppressed(t *testing.T) {
	engine := NewEngine()

	result := engine.Compare(
		map[string]string{"Item 1": paraA + "\n\nShort note."},
		map[string]string{"Item 1": paraA + "\n\nOther note."},
	)

	// Both differing paragraphs are under the materiality threshold
	diff := result.Sections["Item 1"]
	assert.False(t, diff.HasChanges)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
}

func TestCompare_SectionOnlyInOneFiling(t *testing.T) {
	engine := NewEngine()

	result := engine.Compare(
		map[string]string{"Item 1": paraA, "Item 8": paraB},
		map[string]string{"Item 1": paraA, "Item 7": paraC},
	)

	require.Len(t, result.Sections, 3)

	added := result.Sections["Item 7"]
	assert.True(t, added.HasChanges)
	assert.Equal(t, []string{paraC}, added.Added)
	assert.Equal(t, 0.0, added.Similarity)

	removed := result.Sections["Item 8"]
	assert.True(t, removed.HasChanges)
	assert.Equal(t, []string{paraB}, removed.Removed)
}

func TestCompare_EmptyInputs(t *testing.T) {
	engine := NewEngine()

	result := engine.Compare(map[string]string{}, map[string]string{})
	assert.True(t, result.Empty())

	result = engine.Compare(
		map[string]string{"Item 1": ""},
		map[string]string{"Item 1": ""},
	)
	diff := result.Sections["Item 1"]
	assert.False(t, diff.HasChanges)
	assert.Equal(t, 1.0, diff.Similarity)
}

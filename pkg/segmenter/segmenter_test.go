package segmenter

import (
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleSegmentGSM7(t *testing.T) {
	s := NewDefaultSegmenter()

	segs, ucs2, err := s.GetSegments(strings.Repeat("a", 160))
	require.NoError(t, err)
	assert.False(t, ucs2)
	require.Len(t, segs, 1)
	assert.Len(t, segs[0], 160)
}

func TestGSM7SplitsAtMultipartBoundary(t *testing.T) {
	s := NewDefaultSegmenter()

	segs, ucs2, err := s.GetSegments(strings.Repeat("a", 161))
	require.NoError(t, err)
	assert.False(t, ucs2)
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 153)
	assert.Len(t, segs[1], 8)
}

func TestGSM7ExtendedCharactersStayGSM7(t *testing.T) {
	s := NewDefaultSegmenter()

	_, ucs2, err := s.GetSegments("café £5 règle Ω")
	require.NoError(t, err)
	assert.False(t, ucs2)
}

func TestNonGSM7ForcesUCS2(t *testing.T) {
	s := NewDefaultSegmenter()

	segs, ucs2, err := s.GetSegments("привет мир")
	require.NoError(t, err)
	assert.True(t, ucs2)
	require.Len(t, segs, 1)
}

func TestUCS2SplitsAtSeventyUnits(t *testing.T) {
	s := NewDefaultSegmenter()

	segs, ucs2, err := s.GetSegments(strings.Repeat("д", 70))
	require.NoError(t, err)
	assert.True(t, ucs2)
	assert.Len(t, segs, 1)

	segs, ucs2, err = s.GetSegments(strings.Repeat("д", 71))
	require.NoError(t, err)
	assert.True(t, ucs2)
	require.Len(t, segs, 2)
	assert.Equal(t, 67, len(utf16.Encode([]rune(segs[0]))))
}

func TestSegmentsReassembleToOriginal(t *testing.T) {
	s := NewDefaultSegmenter()
	message := strings.Repeat("all work and no play makes jack a dull boy ", 12)

	segs, _, err := s.GetSegments(message)
	require.NoError(t, err)
	assert.Equal(t, message, strings.Join(segs, ""))
}

func TestEmptyMessageYieldsOneEmptySegment(t *testing.T) {
	s := NewDefaultSegmenter()

	segs, ucs2, err := s.GetSegments("")
	require.NoError(t, err)
	assert.False(t, ucs2)
	assert.Equal(t, []string{""}, segs)
}

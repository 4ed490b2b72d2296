package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/rubric-grader/internal/grader/biz/biztest"
)

func TestPDFExtractorRejectsEmptyInput(t *testing.T) {
	text, err := NewPDFExtractor().Extract(context.Background(), nil)
	assert.ErrorIs(t, err, errEmptyDocument)
	assert.Empty(t, text)
}

func TestPDFExtractorRejectsNonPDF(t *testing.T) {
	text, err := NewPDFExtractor().Extract(context.Background(), []byte("this is plain text, not a pdf document"))
	assert.Error(t, err)
	assert.Empty(t, text)
}

func TestPDFExtractorRejectsTruncatedPDF(t *testing.T) {
	text, err := NewPDFExtractor().Extract(context.Background(), []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\n"))
	assert.Error(t, err)
	assert.Empty(t, text)
}

func TestPDFExtractorJoinsPagesInOrder(t *testing.T) {
	data := biztest.PDF("Award one point for the base case.", "Award two points (max) for the recurrence.")

	text, err := NewPDFExtractor().Extract(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "\nAward one point for the base case.\n\nAward two points (max) for the recurrence.", text)
}

func TestPDFExtractorRejectsBlankPages(t *testing.T) {
	text, err := NewPDFExtractor().Extract(context.Background(), biztest.PDF("   ", ""))
	assert.ErrorIs(t, err, errNoText)
	assert.Empty(t, text)
}

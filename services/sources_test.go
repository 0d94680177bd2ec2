package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSourcesParsesReportLines(t *testing.T) {
	report := "Similarity report\n" +
		"* 55% 12 words at https://example.com/article\n" +
		"* 31% 4 words at http://example.org/other\n"

	sources := ExtractSources(report)
	require.Len(t, sources, 2)

	assert.Equal(t, 55, sources[0].Percentage)
	assert.Equal(t, 12, sources[0].Count)
	assert.Equal(t, "https://example.com/article", sources[0].URL)

	assert.Equal(t, 31, sources[1].Percentage)
	assert.Equal(t, 4, sources[1].Count)
	assert.Equal(t, "http://example.org/other", sources[1].URL)
}

func TestExtractSourcesNeverFails(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"plain text":       "no sources here",
		"star without url": "\n* 55% 12 words but no link",
		"url without star": "https://example.com floating around",
		"binary garbage":   "\x00\xff\xfe* %% http://",
	}
	for name, report := range cases {
		t.Run(name, func(t *testing.T) {
			sources := ExtractSources(report)
			assert.NotNil(t, sources)
			assert.Empty(t, sources)
		})
	}
}

func TestExtractSourcesKeepsOrderAndDuplicates(t *testing.T) {
	report := "\n* 20% 2 words at https://example.com/same" +
		"\n* 90% 50 words at https://example.com/big" +
		"\n* 20% 2 words at https://example.com/same"

	sources := ExtractSources(report)
	require.Len(t, sources, 3)
	assert.Equal(t, 20, sources[0].Percentage)
	assert.Equal(t, 90, sources[1].Percentage)
	assert.Equal(t, sources[0], sources[2])
}

func TestExtractSourcesSkipsIncompleteLines(t *testing.T) {
	report := "\n* some note without numbers" +
		"\n* 42% 7 words at https://example.com/hit"

	sources := ExtractSources(report)
	require.Len(t, sources, 1)
	assert.Equal(t, 42, sources[0].Percentage)
	assert.Equal(t, 7, sources[0].Count)
}

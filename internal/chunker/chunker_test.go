package chunker

import (
	"slices"
	"testing"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paginatedDoc() *dldoc.Document {
	box := dldoc.BoundingBox{1, 2, 3, 4}
	return &dldoc.Document{
		Name:     "ducks",
		FileInfo: dldoc.FileInfo{Filename: "ducks.pdf", DocumentHash: "h"},
		MainText: []dldoc.BaseText{
			{Text: "Duck", Type: dldoc.TypeSubtitle, Name: dldoc.NameSectionTitle, Prov: []dldoc.Prov{{BBox: box, Page: 1}}},
			{Text: "header", Type: dldoc.TypePageHeader, Prov: []dldoc.Prov{{BBox: box, Page: 1}}},
			{Text: "A duckling is a young duck.", Type: dldoc.TypeParagraph, Name: dldoc.NameText, Prov: []dldoc.Prov{{BBox: box, Page: 1}}},
			{Text: "   ", Type: dldoc.TypeParagraph},
			{Ref: "#/tables/0", Type: dldoc.TypeTable, Name: dldoc.NameTable},
			{Text: "A male is called a drake.", Type: dldoc.TypeParagraph, Name: dldoc.NameText, Prov: []dldoc.Prov{{BBox: box, Page: 2}}},
		},
		Tables: []dldoc.Table{{
			Type: dldoc.TypeTable,
			Data: [][]dldoc.TableCell{{{Text: "name"}, {Text: "sex"}}, {{Text: "drake"}, {Text: "m"}}},
			Prov: []dldoc.Prov{{BBox: box, Page: 2}},
		}},
	}
}

func TestHierarchicalChunker_HeadingAsMetadata(t *testing.T) {
	c := NewHierarchicalChunker(true)
	chunks := slices.Collect(c.Chunk(paginatedDoc()))
	require.Len(t, chunks, 4)

	assert.Equal(t, "#/main-text/0", chunks[0].Path)
	assert.Equal(t, "Duck", chunks[0].Text)
	assert.Empty(t, chunks[0].Heading)

	assert.Equal(t, "#/main-text/2", chunks[1].Path)
	assert.Equal(t, "A duckling is a young duck.", chunks[1].Text)
	assert.Equal(t, "Duck", chunks[1].Heading)
	require.True(t, chunks[1].HasLayout())
	assert.Equal(t, 1, chunks[1].Layout.Page)
	assert.Equal(t, dldoc.BoundingBox{1, 2, 3, 4}, chunks[1].Layout.BBox)

	assert.Equal(t, "#/tables/0", chunks[2].Path)
	assert.Equal(t, "name | sex\ndrake | m", chunks[2].Text)
	assert.Equal(t, 2, chunks[2].Layout.Page)

	assert.Equal(t, "#/main-text/5", chunks[3].Path)
	assert.Equal(t, "Duck", chunks[3].Heading)
}

func TestHierarchicalChunker_HeadingInText(t *testing.T) {
	c := NewHierarchicalChunker(false)
	chunks := slices.Collect(c.Chunk(paginatedDoc()))
	require.Len(t, chunks, 4)

	assert.Equal(t, "Duck\nA duckling is a young duck.", chunks[1].Text)
	assert.Empty(t, chunks[1].Heading)
}

func TestHierarchicalChunker_NoLayout(t *testing.T) {
	doc := &dldoc.Document{
		Name:     "notes",
		FileInfo: dldoc.FileInfo{Filename: "notes.md", DocumentHash: "n"},
		MainText: []dldoc.BaseText{
			{Text: "plain paragraph", Type: dldoc.TypeParagraph},
		},
	}

	chunks := slices.Collect(NewHierarchicalChunker(true).Chunk(doc))
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].HasLayout())
	assert.Nil(t, chunks[0].Layout)
}

func TestHierarchicalChunker_EarlyStop(t *testing.T) {
	c := NewHierarchicalChunker(true)
	count := 0
	for range c.Chunk(paginatedDoc()) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestHierarchicalChunker_NilDocument(t *testing.T) {
	chunks := slices.Collect(NewHierarchicalChunker(true).Chunk(nil))
	assert.Empty(t, chunks)
}

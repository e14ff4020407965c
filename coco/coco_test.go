package coco

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var testCats = []Category{
	{ID: 1, Name: "healthy", Supercategory: "apple"},
	{ID: 2, Name: "scab", Supercategory: "apple"},
}

func TestBuilderAssignsSequentialIDs(t *testing.T) {
	b := NewBuilder(Info{Year: 2025}, testCats)

	id1 := b.AddImage("a.jpg", Image{ID: 99, FileName: "a.jpg", Width: 256, Height: 256})
	id2 := b.AddImage("b.jpg", Image{FileName: "b.jpg", Width: 256, Height: 256})
	again := b.AddImage("a.jpg", Image{FileName: "a.jpg"})

	assert.EqualValues(t, 1, id1)
	assert.EqualValues(t, 2, id2)
	assert.Equal(t, id1, again)
	assert.Equal(t, 2, b.NumImages())

	a1, err := b.AddAnnotation(id2, 1, [4]float64{0, 13, 235, 235})
	require.NoError(t, err)
	a2, err := b.AddAnnotation(id1, 2, [4]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.EqualValues(t, 1, a1)
	assert.EqualValues(t, 2, a2)

	f := b.File()
	want := []Annotation{
		{ID: 1, ImageID: 2, CategoryID: 1, BBox: []float64{0, 13, 235, 235}, Area: 55225},
		{ID: 2, ImageID: 1, CategoryID: 2, BBox: []float64{1, 2, 3, 4}, Area: 12},
	}
	if diff := cmp.Diff(want, f.Annotations); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, Validate(f))
}

func TestBuilderRejectsUnknownReferences(t *testing.T) {
	b := NewBuilder(Info{}, testCats)
	id := b.AddImage("a.jpg", Image{FileName: "a.jpg"})

	_, err := b.AddAnnotation(id+1, 1, [4]float64{1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrDanglingImage)

	_, err = b.AddAnnotation(id, 7, [4]float64{1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	assert.Equal(t, 0, b.NumAnnotations())
}

func TestEmptyDocumentEncodesArrays(t *testing.T) {
	data, err := NewBuilder(Info{Description: "empty"}, nil).File().Marshal()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"images": []`)
	assert.Contains(t, s, `"annotations": []`)
	assert.Contains(t, s, `"licenses": []`)
	assert.True(t, strings.HasSuffix(s, "}\n"))
	assert.Less(t, strings.Index(s, `"info"`), strings.Index(s, `"images"`))
	assert.Less(t, strings.Index(s, `"categories"`), strings.Index(s, `"annotations"`))
}

func buildDoc(t *testing.T, names ...string) *AnnotationFile {
	t.Helper()
	b := NewBuilder(Info{}, testCats)
	for i, n := range names {
		id := b.AddImage(n, Image{FileName: n, Width: 256, Height: 256})
		_, err := b.AddAnnotation(id, int64(i%2)+1, [4]float64{float64(i), 0, 10, 10})
		require.NoError(t, err)
	}
	return b.File()
}

func TestMergeRenumbers(t *testing.T) {
	a := buildDoc(t, "healthy/1.jpg", "healthy/2.jpg")
	b := buildDoc(t, "scab/1.jpg", "scab/2.jpg", "scab/3.jpg")

	m, err := Merge(Info{Description: "combined"}, testCats, a, b)
	require.NoError(t, err)
	require.NoError(t, Validate(m))

	require.Len(t, m.Images, 5)
	require.Len(t, m.Annotations, 5)
	assert.Equal(t, "scab/1.jpg", m.Images[2].FileName)
	assert.EqualValues(t, 3, m.Images[2].ID)
	assert.EqualValues(t, 3, m.Annotations[2].ImageID)
	assert.Equal(t, []float64{0, 0, 10, 10}, m.Annotations[2].BBox)
	assert.Equal(t, "combined", m.Info.Description)

	// sources are left untouched
	assert.EqualValues(t, 1, b.Images[0].ID)
}

func TestMergeFoldsSameFileName(t *testing.T) {
	a := buildDoc(t, "x.jpg")
	b := buildDoc(t, "x.jpg")

	m, err := Merge(Info{}, testCats, a, b)
	require.NoError(t, err)
	assert.Len(t, m.Images, 1)
	assert.Len(t, m.Annotations, 2)
	assert.EqualValues(t, 1, m.Annotations[1].ImageID)
}

func TestMergeDanglingImage(t *testing.T) {
	a := buildDoc(t, "x.jpg")
	a.Annotations[0].ImageID = 5

	_, err := Merge(Info{}, testCats, a)
	assert.ErrorIs(t, err, ErrDanglingImage)
}

func TestValidateReportsAllProblems(t *testing.T) {
	f := &AnnotationFile{
		Images:     []Image{{ID: 1}, {ID: 3}},
		Categories: testCats,
		Annotations: []Annotation{
			{ID: 1, ImageID: 1, CategoryID: 1, BBox: []float64{0, 0, 1, 1}},
			{ID: 5, ImageID: 9, CategoryID: 4, BBox: []float64{0, -1, 1, 1}},
			{ID: 3, ImageID: 1, CategoryID: 2, BBox: []float64{0, 0}},
		},
	}

	err := Validate(f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonContiguousID)
	assert.ErrorIs(t, err, ErrDanglingImage)
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Len(t, multierr.Errors(err), 6)
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := buildDoc(t, "a.jpg", "b.jpg")
	doc.Info = Info{Year: 2025, Version: "1.0.0", Description: "d", URL: "u"}

	require.NoError(t, WriteAnnotationFile(fs, "/out/nested/doc.json", doc))
	exists, err := afero.Exists(fs, "/out/nested/doc.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := LoadAnnotationFile(fs, "/out/nested/doc.json")
	require.NoError(t, err)
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// overwrite in place
	doc.Info.Description = "second"
	require.NoError(t, WriteAnnotationFile(fs, "/out/nested/doc.json", doc))
	got, err = LoadAnnotationFile(fs, "/out/nested/doc.json")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Info.Description)
}

func TestLoadAnnotationFileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte("{"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/null.json", []byte("null"), 0o644))

	_, err := LoadAnnotationFile(fs, "/missing.json")
	assert.Error(t, err)
	_, err = LoadAnnotationFile(fs, "/bad.json")
	assert.Error(t, err)
	_, err = LoadAnnotationFile(fs, "/null.json")
	assert.Error(t, err)
}

func TestIndexesAndStats(t *testing.T) {
	doc := buildDoc(t, "a.jpg", "b.jpg", "c.jpg")
	doc.Images = append(doc.Images, Image{ID: 4, FileName: "d.jpg"})

	names := BuildFileNameIndex(doc.Images)
	assert.Equal(t, "c.jpg", names[3])

	byImage := AnnotationsByImage(doc.Annotations)
	assert.Len(t, byImage[2], 1)
	assert.Empty(t, byImage[4])

	s := ComputeStats(doc)
	assert.Equal(t, 4, s.Images)
	assert.Equal(t, 3, s.Annotations)
	assert.Equal(t, 1, s.UnannotatedImages)
	require.Len(t, s.Categories, 2)
	assert.Equal(t, 2, s.Categories[0].Annotations)
	assert.Equal(t, 1, s.Categories[1].Annotations)
}

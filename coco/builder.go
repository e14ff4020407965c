package coco

import (
	"errors"
	"fmt"
)

var (
	ErrDanglingImage   = errors.New("annotation references unknown image")
	ErrUnknownCategory = errors.New("annotation references unknown category")
	ErrNonContiguousID = errors.New("ids are not contiguous from 1")
)

// Builder assembles one AnnotationFile. Image ids and annotation ids are
// assigned from 1 in insertion order; images are keyed so that an image is
// registered at most once per document.
type Builder struct {
	file       AnnotationFile
	imageIDs   map[string]int64
	categories map[int64]bool
}

func NewBuilder(info Info, cats []Category) *Builder {
	b := &Builder{
		file: AnnotationFile{
			Info:        info,
			Images:      []Image{},
			Categories:  append([]Category{}, cats...),
			Annotations: []Annotation{},
			Licenses:    []License{},
		},
		imageIDs:   make(map[string]int64),
		categories: make(map[int64]bool, len(cats)),
	}
	for _, c := range cats {
		b.categories[c.ID] = true
	}

	return b
}

// AddImage registers img under key and returns its id. The id field of img
// is ignored. Registering an existing key returns the earlier id.
func (b *Builder) AddImage(key string, img Image) int64 {
	if id, ok := b.imageIDs[key]; ok {
		return id
	}

	img.ID = int64(len(b.file.Images)) + 1
	b.file.Images = append(b.file.Images, img)
	b.imageIDs[key] = img.ID

	return img.ID
}

// AddAnnotation appends a box for an image previously returned by AddImage.
func (b *Builder) AddAnnotation(imageID, categoryID int64, bbox [4]float64) (int64, error) {
	if imageID < 1 || imageID > int64(len(b.file.Images)) {
		return 0, fmt.Errorf("%w: image id %d", ErrDanglingImage, imageID)
	}
	if !b.categories[categoryID] {
		return 0, fmt.Errorf("%w: category id %d", ErrUnknownCategory, categoryID)
	}

	a := Annotation{
		ID:         int64(len(b.file.Annotations)) + 1,
		ImageID:    imageID,
		CategoryID: categoryID,
		BBox:       []float64{bbox[0], bbox[1], bbox[2], bbox[3]},
		Area:       bbox[2] * bbox[3],
		IsCrowd:    0,
	}
	b.file.Annotations = append(b.file.Annotations, a)

	return a.ID, nil
}

func (b *Builder) NumImages() int {
	return len(b.file.Images)
}

func (b *Builder) NumAnnotations() int {
	return len(b.file.Annotations)
}

// File returns the document built so far. The builder must not be used
// afterwards.
func (b *Builder) File() *AnnotationFile {
	return &b.file
}

// Merge concatenates documents into one with fresh ids. Images with the same
// file_name are folded into a single entry. Annotations keep their category
// ids, which must exist in cats.
func Merge(info Info, cats []Category, files ...*AnnotationFile) (*AnnotationFile, error) {
	b := NewBuilder(info, cats)

	for i, f := range files {
		remap := make(map[int64]int64, len(f.Images))
		for _, img := range f.Images {
			remap[img.ID] = b.AddImage(img.FileName, img)
		}

		for _, a := range f.Annotations {
			imageID, ok := remap[a.ImageID]
			if !ok {
				return nil, fmt.Errorf("document %d, annotation %d: %w: image id %d", i, a.ID, ErrDanglingImage, a.ImageID)
			}
			if len(a.BBox) != 4 {
				return nil, fmt.Errorf("document %d, annotation %d: bbox has %d values", i, a.ID, len(a.BBox))
			}
			if _, err := b.AddAnnotation(imageID, a.CategoryID, [4]float64{a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]}); err != nil {
				return nil, fmt.Errorf("document %d, annotation %d: %w", i, a.ID, err)
			}
		}
	}

	return b.File(), nil
}

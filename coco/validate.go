package coco

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Validate checks that image and annotation ids are each contiguous from 1,
// that every annotation points at an image and a category of the same
// document, and that boxes have four non-negative values. All problems are
// returned together.
func Validate(f *AnnotationFile) (err error) {
	images := make(map[int64]bool, len(f.Images))
	for i, img := range f.Images {
		if img.ID != int64(i)+1 {
			err = multierr.Append(err, fmt.Errorf("%w: images[%d] has id %d", ErrNonContiguousID, i, img.ID))
		}
		images[img.ID] = true
	}

	cats := make(map[int64]bool, len(f.Categories))
	for _, c := range f.Categories {
		cats[c.ID] = true
	}

	for i, a := range f.Annotations {
		if a.ID != int64(i)+1 {
			err = multierr.Append(err, fmt.Errorf("%w: annotations[%d] has id %d", ErrNonContiguousID, i, a.ID))
		}
		if !images[a.ImageID] {
			err = multierr.Append(err, fmt.Errorf("%w: annotation %d, image id %d", ErrDanglingImage, a.ID, a.ImageID))
		}
		if !cats[a.CategoryID] {
			err = multierr.Append(err, fmt.Errorf("%w: annotation %d, category id %d", ErrUnknownCategory, a.ID, a.CategoryID))
		}
		if len(a.BBox) != 4 {
			err = multierr.Append(err, fmt.Errorf("annotation %d: bbox has %d values", a.ID, len(a.BBox)))
			continue
		}
		for _, v := range a.BBox {
			if v < 0 {
				err = multierr.Append(err, fmt.Errorf("annotation %d: negative bbox value %g", a.ID, v))
				break
			}
		}
	}

	return
}

// CategoryCount is the number of annotations carrying one category id.
type CategoryCount struct {
	Category
	Annotations int
}

// Stats summarises a document.
type Stats struct {
	Images            int
	Annotations       int
	UnannotatedImages int
	Categories        []CategoryCount
}

func ComputeStats(f *AnnotationFile) Stats {
	s := Stats{Images: len(f.Images), Annotations: len(f.Annotations)}

	perCat := make(map[int64]int)
	annotated := make(map[int64]bool)
	for _, a := range f.Annotations {
		perCat[a.CategoryID]++
		annotated[a.ImageID] = true
	}
	for _, img := range f.Images {
		if !annotated[img.ID] {
			s.UnannotatedImages++
		}
	}

	for _, c := range f.Categories {
		s.Categories = append(s.Categories, CategoryCount{Category: c, Annotations: perCat[c.ID]})
	}
	sort.SliceStable(s.Categories, func(i, j int) bool { return s.Categories[i].ID < s.Categories[j].ID })

	return s
}

// Package coco models COCO object-detection documents and builds them with
// sequential, document-local image and annotation ids.
package coco

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

type Info struct {
	Year        int    `json:"year"`
	Version     string `json:"version"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type Image struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type Annotation struct {
	ID         int64     `json:"id"`
	ImageID    int64     `json:"image_id"`
	CategoryID int64     `json:"category_id"`
	BBox       []float64 `json:"bbox"`
	Area       float64   `json:"area"`
	IsCrowd    int       `json:"iscrowd"`
}

type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

type License struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AnnotationFile is a complete COCO document.
type AnnotationFile struct {
	Info        Info         `json:"info"`
	Images      []Image      `json:"images"`
	Categories  []Category   `json:"categories"`
	Annotations []Annotation `json:"annotations"`
	Licenses    []License    `json:"licenses"`
}

func LoadAnnotationFile(fs afero.Fs, path string) (ret *AnnotationFile, err error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return
	}

	if err = json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if ret == nil {
		return nil, fmt.Errorf("parse %s: empty document", path)
	}

	return
}

// Marshal encodes f with two-space indentation and a trailing newline.
func (f *AnnotationFile) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteAnnotationFile replaces path with the encoded document. The data is
// written to a sibling temp file first and renamed into place.
func WriteAnnotationFile(fs afero.Fs, path string, f *AnnotationFile) error {
	data, err := f.Marshal()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}

	return nil
}

func BuildFileNameIndex(imgs []Image) (ret map[int64]string) {
	ret = make(map[int64]string)
	for _, img := range imgs {
		ret[img.ID] = img.FileName
	}

	return
}

// AnnotationsByImage groups annotations by image id, keeping document order.
func AnnotationsByImage(anns []Annotation) (ret map[int64][]Annotation) {
	ret = make(map[int64][]Annotation)
	for _, a := range anns {
		ret[a.ImageID] = append(ret[a.ImageID], a)
	}

	return
}

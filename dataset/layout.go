// Package dataset reads the standardized apple leaf dataset tree:
//
//	{root}/{category}/labelmap.json
//	{root}/{category}/{subcategory}/{variant}/sets/{split}.txt
//	{root}/{category}/{subcategory}/{variant}/csv/{image}.csv
//	{root}/{category}/{subcategory}/{variant}/images/{image}.{ext}
//
// All access goes through an afero.Fs and nothing is ever written.
package dataset

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Variants are the parallel image representations stored per subcategory.
var Variants = []string{"color", "grayscale", "segmented", "with_augmentation", "without_augmentation"}

// Splits are the recognised split names, in canonical order.
var Splits = []string{"train", "val", "test"}

func ValidVariant(v string) bool {
	return contains(Variants, v)
}

func ValidSplit(s string) bool {
	return contains(Splits, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Layout resolves paths of one category/variant inside a dataset root.
type Layout struct {
	Root     string
	Category string
	Variant  string
}

func (l Layout) CategoryDir() string {
	return filepath.Join(l.Root, l.Category)
}

func (l Layout) LabelMapPath() string {
	return filepath.Join(l.CategoryDir(), "labelmap.json")
}

func (l Layout) VariantDir(sub string) string {
	return filepath.Join(l.CategoryDir(), sub, l.Variant)
}

func (l Layout) SplitFile(sub, split string) string {
	return filepath.Join(l.VariantDir(sub), "sets", split+".txt")
}

func (l Layout) ImagesDir(sub string) string {
	return filepath.Join(l.VariantDir(sub), "images")
}

func (l Layout) CSVPath(sub, stem string) string {
	return filepath.Join(l.VariantDir(sub), "csv", stem+".csv")
}

// RelImagePath is the slash separated image path relative to Root, as
// stored in COCO file_name fields.
func (l Layout) RelImagePath(sub, name string) string {
	return path.Join(l.Category, sub, l.Variant, "images", name)
}

// Subcategories lists, in sorted order, the directories under the category
// folder that hold the layout's variant subtree. Directories without it are
// returned as ignored.
func Subcategories(fs afero.Fs, l Layout) (subs, ignored []string, err error) {
	infos, err := afero.ReadDir(fs, l.CategoryDir())
	if err != nil {
		return nil, nil, fmt.Errorf("list subcategories of %s: %w", l.CategoryDir(), err)
	}

	for _, fi := range infos {
		if !fi.IsDir() {
			continue
		}
		ok, err := afero.DirExists(fs, l.VariantDir(fi.Name()))
		if err != nil {
			return nil, nil, err
		}
		if ok {
			subs = append(subs, fi.Name())
		} else {
			ignored = append(ignored, fi.Name())
		}
	}
	sort.Strings(subs)
	sort.Strings(ignored)

	return
}

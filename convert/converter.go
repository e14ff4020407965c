// Package convert turns the per-image CSV annotations of a dataset category
// into COCO documents: per split one document for the whole category, one
// per subcategory and, optionally, a combined document.
package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/model-collapse/apple-coco/coco"
	"github.com/model-collapse/apple-coco/dataset"
)

var (
	ErrMissingPath   = errors.New("path does not exist")
	ErrNotWritable   = errors.New("output directory not writable")
	ErrImageMissing  = errors.New("image file not found")
	ErrNoSubcategory = errors.New("no subcategories to convert")
)

type Converter struct {
	fs     afero.Fs
	log    *zap.Logger
	opts   Options
	layout dataset.Layout
	labels *dataset.LabelMap
	cats   []coco.Category
	subs   []string
}

// New checks the options and the dataset tree and loads the label map. Any
// error it returns is fatal; nothing has been written at that point except
// possibly the (empty) output directory.
func New(fs afero.Fs, logger *zap.Logger, opts Options) (*Converter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Converter{
		fs:     fs,
		log:    logger,
		opts:   opts,
		layout: dataset.Layout{Root: opts.Root, Category: opts.Category, Variant: opts.Variant},
	}

	if err := c.requireDir(opts.Root, "root"); err != nil {
		return nil, err
	}
	if err := c.requireDir(c.layout.CategoryDir(), "category"); err != nil {
		return nil, err
	}

	labels, err := dataset.LoadLabelMap(fs, c.layout.LabelMapPath())
	if err != nil {
		return nil, err
	}
	c.labels = labels
	for _, l := range labels.Labels() {
		c.cats = append(c.cats, coco.Category{ID: l.ID, Name: l.Name, Supercategory: opts.Supercategory})
	}

	if c.subs, err = c.resolveSubcategories(); err != nil {
		return nil, err
	}

	if err := c.prepareOut(); err != nil {
		return nil, err
	}

	logger.Debug("Converter ready",
		zap.String("root", opts.Root),
		zap.String("category", opts.Category),
		zap.String("variant", opts.Variant),
		zap.Strings("subcategories", c.subs),
		zap.Int("labels", labels.Len()))

	return c, nil
}

func (c *Converter) requireDir(path, what string) error {
	fi, err := c.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s %s: %w", what, path, ErrMissingPath)
		}
		return fmt.Errorf("%s %s: %w", what, path, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s %s: not a directory", what, path)
	}
	return nil
}

func (c *Converter) resolveSubcategories() ([]string, error) {
	if len(c.opts.Subcategories) == 0 {
		subs, ignored, err := dataset.Subcategories(c.fs, c.layout)
		if err != nil {
			return nil, err
		}
		for _, dir := range ignored {
			c.log.Warn("Ignoring directory without variant subtree",
				zap.String("dir", filepath.Join(c.layout.CategoryDir(), dir)),
				zap.String("variant", c.opts.Variant))
		}
		if len(subs) == 0 {
			return nil, fmt.Errorf("%s: %w", c.layout.CategoryDir(), ErrNoSubcategory)
		}
		return subs, nil
	}

	for _, sub := range c.opts.Subcategories {
		if err := c.requireDir(c.layout.VariantDir(sub), "subcategory"); err != nil {
			return nil, err
		}
	}
	return c.opts.Subcategories, nil
}

func (c *Converter) prepareOut() error {
	if err := c.fs.MkdirAll(c.opts.Out, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, c.opts.Out, err)
	}

	probe, err := afero.TempFile(c.fs, c.opts.Out, ".cococonv-")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, c.opts.Out, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = c.fs.Remove(name)

	return nil
}

func (c *Converter) Subcategories() []string {
	return append([]string{}, c.subs...)
}

type pendingOutput struct {
	out  Output
	file *coco.AnnotationFile
}

// Run builds every document in memory and only then writes them, so a fatal
// error while reading leaves previous outputs untouched. Per split it emits
// one document per subcategory, the category document merging all of them
// and, in combined mode, the combined document.
func (c *Converter) Run() (*Report, error) {
	rep := &Report{}
	var pending []pendingOutput

	for _, split := range c.opts.Splits {
		docs := make([]*coco.AnnotationFile, 0, len(c.subs))
		for _, sub := range c.subs {
			f, warns, err := c.buildSubcategory(sub, split)
			if err != nil {
				return nil, err
			}
			rep.Warnings = append(rep.Warnings, warns...)
			docs = append(docs, f)
			pending = append(pending, pendingOutput{
				out:  c.output(c.subcategoryPath(sub, split), sub, split, f),
				file: f,
			})
		}

		all, err := coco.Merge(c.info("all", split), c.cats, docs...)
		if err != nil {
			return nil, fmt.Errorf("merge %s split: %w", split, err)
		}
		pending = append(pending, pendingOutput{
			out:  c.output(c.categoryPath(split), "", split, all),
			file: all,
		})

		if c.opts.Combined {
			m, err := coco.Merge(c.info("combined", split), c.cats, docs...)
			if err != nil {
				return nil, fmt.Errorf("combine %s split: %w", split, err)
			}
			pending = append(pending, pendingOutput{
				out:  c.output(c.combinedPath(split), "", split, m),
				file: m,
			})
		}
	}

	for _, p := range pending {
		if err := coco.WriteAnnotationFile(c.fs, p.out.Path, p.file); err != nil {
			return rep, err
		}
		c.log.Info("Generated",
			zap.String("path", p.out.Path),
			zap.String("split", p.out.Split),
			zap.Int("images", p.out.Images),
			zap.Int("annotations", p.out.Annotations))
		rep.Outputs = append(rep.Outputs, p.out)
	}

	for _, wc := range rep.WarningCounts() {
		c.log.Warn("Skipped input summary",
			zap.String("subcategory", wc.Subcategory),
			zap.String("split", wc.Split),
			zap.Int("count", wc.Count))
	}
	c.log.Info("Conversion finished",
		zap.Int("documents", len(rep.Outputs)),
		zap.Int("warnings", len(rep.Warnings)))

	return rep, nil
}

func (c *Converter) output(path, sub, split string, f *coco.AnnotationFile) Output {
	return Output{
		Path:        path,
		Subcategory: sub,
		Split:       split,
		Images:      len(f.Images),
		Annotations: len(f.Annotations),
	}
}

func (c *Converter) subcategoryPath(sub, split string) string {
	return filepath.Join(c.opts.Out, sub, fmt.Sprintf("%s_instances_%s.json", c.opts.Category, split))
}

func (c *Converter) categoryPath(split string) string {
	return filepath.Join(c.opts.Out, fmt.Sprintf("%s_instances_%s.json", c.opts.Category, split))
}

func (c *Converter) combinedPath(split string) string {
	return filepath.Join(c.opts.Out, fmt.Sprintf("combined_instances_%s.json", split))
}

func (c *Converter) info(sub, split string) coco.Info {
	t := c.opts.Info
	return coco.Info{
		Year:    t.Year,
		Version: t.Version,
		// sub is "all" or "combined" for merged documents
		Description: fmt.Sprintf("%s %s %s %s %s split", t.Prefix, c.opts.Category, sub, c.opts.Variant, split),
		URL:         t.URL,
	}
}

// splitMembers returns the stems listed in the split file, or every image of
// the subcategory when there is none.
func (c *Converter) splitMembers(sub, split string) ([]string, error) {
	stems, found, err := dataset.ReadSplit(c.fs, c.layout.SplitFile(sub, split))
	if err != nil {
		return nil, err
	}
	if found {
		return stems, nil
	}

	imgs, err := dataset.ListImages(c.fs, c.layout.ImagesDir(sub))
	if err != nil {
		return nil, err
	}
	c.log.Debug("No split file, using all images",
		zap.String("subcategory", sub),
		zap.String("split", split),
		zap.Int("images", len(imgs)))

	stems = make([]string, 0, len(imgs))
	for _, img := range imgs {
		stems = append(stems, img.Stem)
	}
	return stems, nil
}

func (c *Converter) buildSubcategory(sub, split string) (*coco.AnnotationFile, []Warning, error) {
	var warns []Warning
	warn := func(file string, line int, err error) {
		c.log.Warn("Skipping",
			zap.String("subcategory", sub),
			zap.String("split", split),
			zap.String("file", file),
			zap.Int("line", line),
			zap.Error(err))
		warns = append(warns, Warning{Subcategory: sub, Split: split, File: file, Line: line, Err: err})
	}

	stems, err := c.splitMembers(sub, split)
	if err != nil {
		return nil, nil, fmt.Errorf("%s/%s: %w", sub, split, err)
	}

	b := coco.NewBuilder(c.info(sub, split), c.cats)
	imagesDir := c.layout.ImagesDir(sub)

	for _, stem := range stems {
		name, ok := dataset.FindImage(c.fs, imagesDir, stem)
		if !ok {
			warn(filepath.Join(imagesDir, stem), 0, ErrImageMissing)
			continue
		}

		w, h, err := dataset.ImageSize(c.fs, filepath.Join(imagesDir, name))
		if err != nil {
			c.log.Debug("Using default image size", zap.String("image", name), zap.Error(err))
			w, h = c.opts.DefaultWidth, c.opts.DefaultHeight
		}

		rel := c.layout.RelImagePath(sub, name)
		imageID := b.AddImage(rel, coco.Image{FileName: rel, Width: w, Height: h})

		csvPath := c.layout.CSVPath(sub, stem)
		recs, rowErrs, err := dataset.ReadRecords(c.fs, csvPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case errors.Is(err, dataset.ErrMalformedFile):
			warn(csvPath, 0, err)
			continue
		case err != nil:
			return nil, nil, fmt.Errorf("%s/%s: %w", sub, split, err)
		}

		for _, re := range rowErrs {
			warn(csvPath, re.Line, re.Err)
		}
		for _, rec := range recs {
			catID, err := c.labels.Lookup(rec.Label)
			if err != nil {
				warn(csvPath, rec.Line, err)
				continue
			}
			if _, err := b.AddAnnotation(imageID, catID, rec.BBox()); err != nil {
				return nil, nil, fmt.Errorf("%s/%s: %s:%d: %w", sub, split, csvPath, rec.Line, err)
			}
		}
	}

	return b.File(), warns, nil
}

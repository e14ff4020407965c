package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"path/filepath"

	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/model-collapse/apple-coco/coco"
)

var boxColors = []color.RGBA{
	{0, 200, 0, 255},
	{230, 160, 0, 255},
	{200, 0, 0, 255},
	{150, 60, 200, 255},
	{0, 120, 230, 255},
}

func categoryColor(id int64) color.RGBA {
	if id < 1 {
		return color.RGBA{255, 255, 0, 255}
	}
	return boxColors[(id-1)%int64(len(boxColors))]
}

func drawBoundingBoxOnImage(img *image.RGBA, anns []coco.Annotation, lineWidth float64) {
	gc := draw2dimg.NewGraphicContext(img)
	gc.SetLineWidth(lineWidth)

	for _, a := range anns {
		if len(a.BBox) != 4 {
			continue
		}
		x, y, w, h := a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]
		gc.SetStrokeColor(categoryColor(a.CategoryID))
		draw2dkit.Rectangle(gc, x, y, x+w, y+h)
		gc.Stroke()
	}
}

func (a *app) previewCmd() *cobra.Command {
	var (
		root      string
		docPath   string
		out       string
		imageID   int64
		lineWidth float64
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Draw the boxes of one image of a COCO document into a PNG",
		Long: `Render the annotations of one image onto a copy of it. The image is
located as {root}/{file_name}; the dataset itself is never modified.

Example:
  cococonv preview --root ./dataset --doc annotations/combined_instances_val.json --image-id 3 --out box.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if docPath == "" || out == "" {
				return fmt.Errorf("--doc and --out are required")
			}
			if root == "" {
				cfg, err := LoadConfig(a.v, a.cfgFile)
				if err != nil {
					return err
				}
				root = cfg.Root
			}
			return a.renderPreview(root, docPath, imageID, out, lineWidth)
		},
	}

	f := cmd.Flags()
	f.StringVar(&root, "root", "", "Dataset root the file names are relative to (default: configured root)")
	f.StringVar(&docPath, "doc", "", "COCO document")
	f.Int64Var(&imageID, "image-id", 1, "Id of the image to render")
	f.StringVar(&out, "out", "", "PNG file to write")
	f.Float64Var(&lineWidth, "line-width", 2, "Box line width in pixels")

	return cmd
}

func (a *app) renderPreview(root, docPath string, imageID int64, out string, lineWidth float64) error {
	doc, err := coco.LoadAnnotationFile(a.fs, docPath)
	if err != nil {
		return err
	}

	fns := coco.BuildFileNameIndex(doc.Images)
	fn, ok := fns[imageID]
	if !ok {
		return fmt.Errorf("image id %d, does not exist in %s", imageID, docPath)
	}

	src, err := a.decodeImage(filepath.Join(root, filepath.FromSlash(fn)))
	if err != nil {
		return err
	}

	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	anns := coco.AnnotationsByImage(doc.Annotations)[imageID]
	drawBoundingBoxOnImage(canvas, anns, lineWidth)

	if err := a.fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	fw, err := a.fs.Create(out)
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := png.Encode(fw, canvas); err != nil {
		return fmt.Errorf("encode %s: %w", out, err)
	}

	a.logger.Info("Rendered preview",
		zap.String("image", fn),
		zap.Int("boxes", len(anns)),
		zap.String("out", out))
	return nil
}

func (a *app) decodeImage(path string) (image.Image, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

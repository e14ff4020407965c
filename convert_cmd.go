package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/model-collapse/apple-coco/convert"
)

func (a *app) convertCmd() *cobra.Command {
	d := convert.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Generate COCO documents from CSV annotations",
		Long: `Generate {out}/{category}_instances_{split}.json holding every
subcategory of a split, and {out}/{subcategory}/{category}_instances_{split}.json
per subcategory. With --combined, also write {out}/combined_instances_{split}.json.
Folders of the category without the selected variant are ignored.

Rows with unknown labels or bad numbers are skipped and counted; the run still
succeeds. A missing root, category or label map aborts before anything is
written.

Example:
  cococonv convert --root ./dataset --out ./annotations --combined
  cococonv convert --root ./dataset --out ./annotations --variant grayscale --splits train,val`,
		Args: cobra.NoArgs,
		RunE: a.runConvert,
	}

	f := cmd.Flags()
	f.String("root", "", "Dataset root directory (required)")
	f.String("out", "", "Output directory, created if absent (required)")
	f.String("category", d.Category, "Top-level category folder")
	f.StringSlice("splits", d.Splits, "Splits to generate")
	f.String("variant", d.Variant, "Image variant subtree to read")
	f.StringSlice("subcategories", nil, "Subcategories to include (default: every folder of the category)")
	f.Bool("combined", false, "Also write documents merged across subcategories")
	f.Int("default-width", d.DefaultWidth, "Image width used when the header cannot be read")
	f.Int("default-height", d.DefaultHeight, "Image height used when the header cannot be read")
	f.String("supercategory", d.Supercategory, "Supercategory of every emitted category")

	a.bindFlags(f, "root", "out", "category", "splits", "variant", "subcategories",
		"combined", "default-width", "default-height", "supercategory")

	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	c, err := convert.New(a.fs, a.logger, cfg.Options())
	if err != nil {
		return err
	}

	rep, err := c.Run()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, o := range rep.Outputs {
		fmt.Fprintf(w, "Generated: %s (%d images, %d annotations)\n", o.Path, o.Images, o.Annotations)
	}
	if len(rep.Warnings) > 0 {
		fmt.Fprintf(w, "Skipped %d inputs:\n", len(rep.Warnings))
		for _, wc := range rep.WarningCounts() {
			fmt.Fprintf(w, "  %s/%s: %d\n", wc.Subcategory, wc.Split, wc.Count)
		}
	}

	return nil
}

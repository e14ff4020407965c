package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/model-collapse/apple-coco/coco"
)

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print counts of COCO documents and check their integrity",
		Long: `Load each COCO document, print its image, annotation and per-category
counts, and check that ids are contiguous from 1 and that every annotation
references an image and a category of the same document.

Exits non-zero if any document fails the checks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runInspect,
	}
}

func (a *app) runInspect(cmd *cobra.Command, args []string) (err error) {
	w := cmd.OutOrStdout()

	for _, path := range args {
		f, lerr := coco.LoadAnnotationFile(a.fs, path)
		if lerr != nil {
			err = multierr.Append(err, lerr)
			continue
		}

		s := coco.ComputeStats(f)
		fmt.Fprintf(w, "%s: %d images (%d without annotations), %d annotations, %d categories\n",
			path, s.Images, s.UnannotatedImages, s.Annotations, len(s.Categories))
		for _, c := range s.Categories {
			fmt.Fprintf(w, "  %3d %-28s %d\n", c.ID, c.Name, c.Annotations)
		}

		if verr := coco.Validate(f); verr != nil {
			errs := multierr.Errors(verr)
			fmt.Fprintf(w, "  INVALID: %d problems\n", len(errs))
			for _, e := range errs {
				fmt.Fprintf(w, "    %v\n", e)
			}
			a.logger.Warn("Invalid document", zap.String("path", path), zap.Int("problems", len(errs)))
			err = multierr.Append(err, fmt.Errorf("%s: %d problems", path, len(errs)))
		}
	}

	return
}

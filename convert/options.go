package convert

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/model-collapse/apple-coco/dataset"
)

var ErrInvalidOptions = errors.New("invalid options")

// InfoTemplate fills the static info block of every emitted document.
type InfoTemplate struct {
	Year    int
	Version string
	// Prefix starts every description, e.g. "Plant Village Apple".
	Prefix string
	URL    string
}

type Options struct {
	Root          string
	Out           string
	Category      string
	Variant       string
	Splits        []string
	Subcategories []string
	Combined      bool

	// DefaultWidth and DefaultHeight are used when an image header cannot
	// be decoded.
	DefaultWidth  int
	DefaultHeight int
	Supercategory string
	Info          InfoTemplate
}

func DefaultOptions() Options {
	return Options{
		Category:      "apples",
		Variant:       "color",
		Splits:        append([]string{}, dataset.Splits...),
		DefaultWidth:  256,
		DefaultHeight: 256,
		Supercategory: "apple",
		Info: InfoTemplate{
			Year:    2025,
			Version: "1.0.0",
			Prefix:  "Plant Village Apple",
			URL:     "https://www.kaggle.com/datasets/abdallahalidev/plantvillage-dataset",
		},
	}
}

// Validate reports every problem with the options at once.
func (o Options) Validate() (err error) {
	if strings.TrimSpace(o.Root) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: root is required", ErrInvalidOptions))
	}
	if strings.TrimSpace(o.Out) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: out is required", ErrInvalidOptions))
	}
	if strings.TrimSpace(o.Category) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: category is required", ErrInvalidOptions))
	}
	if !dataset.ValidVariant(o.Variant) {
		err = multierr.Append(err, fmt.Errorf("%w: unknown variant %q (want one of %s)",
			ErrInvalidOptions, o.Variant, strings.Join(dataset.Variants, ", ")))
	}
	if len(o.Splits) == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: no splits selected", ErrInvalidOptions))
	}
	seen := make(map[string]bool)
	for _, s := range o.Splits {
		if !dataset.ValidSplit(s) {
			err = multierr.Append(err, fmt.Errorf("%w: unknown split %q (want one of %s)",
				ErrInvalidOptions, s, strings.Join(dataset.Splits, ", ")))
		}
		if seen[s] {
			err = multierr.Append(err, fmt.Errorf("%w: split %q given twice", ErrInvalidOptions, s))
		}
		seen[s] = true
	}
	if o.DefaultWidth <= 0 || o.DefaultHeight <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: default image size must be positive, got %dx%d",
			ErrInvalidOptions, o.DefaultWidth, o.DefaultHeight))
	}

	return
}

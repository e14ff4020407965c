// Command cococonv converts the per-image CSV box annotations of the apple
// leaf dataset into COCO JSON and offers tools to inspect and preview the
// generated documents.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time
var version = "0.1.0"

type app struct {
	fs      afero.Fs
	v       *viper.Viper
	logger  *zap.Logger
	cfgFile string
	verbose bool
}

func newApp(fs afero.Fs) *app {
	return &app{fs: fs, v: newViper(fs)}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cococonv",
		Short: "Convert per-image CSV box annotations to COCO JSON",
		Long: `cococonv reads the standardized dataset tree

  {root}/{category}/labelmap.json
  {root}/{category}/{subcategory}/{variant}/sets/{split}.txt
  {root}/{category}/{subcategory}/{variant}/csv/{image}.csv
  {root}/{category}/{subcategory}/{variant}/images/{image}.{ext}

and writes one COCO document per subcategory and split, optionally merged
across subcategories.

Commands:
  convert  - generate COCO documents
  inspect  - print counts and check referential integrity of documents
  preview  - draw the boxes of one image into a PNG`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			logger, err := newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Config file (yaml, json or toml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(a.convertCmd())
	cmd.AddCommand(a.inspectCmd())
	cmd.AddCommand(a.previewCmd())

	return cmd
}

// bindFlags exposes flags to viper; dashes in flag names become underscores
// in config keys.
func (a *app) bindFlags(flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		key := strings.ReplaceAll(name, "-", "_")
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func main() {
	if err := newApp(afero.NewOsFs()).rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

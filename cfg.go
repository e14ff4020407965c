package main

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/model-collapse/apple-coco/convert"
)

type InfoConfig struct {
	Year    int    `mapstructure:"year"`
	Version string `mapstructure:"version"`
	Prefix  string `mapstructure:"prefix"`
	URL     string `mapstructure:"url"`
}

// Config is the converter configuration. Values come from, in increasing
// priority: defaults, the config file, COCOCONV_* environment variables and
// command line flags.
type Config struct {
	Root          string     `mapstructure:"root"`
	Out           string     `mapstructure:"out"`
	Category      string     `mapstructure:"category"`
	Variant       string     `mapstructure:"variant"`
	Splits        []string   `mapstructure:"splits"`
	Subcategories []string   `mapstructure:"subcategories"`
	Combined      bool       `mapstructure:"combined"`
	DefaultWidth  int        `mapstructure:"default_width"`
	DefaultHeight int        `mapstructure:"default_height"`
	Supercategory string     `mapstructure:"supercategory"`
	Info          InfoConfig `mapstructure:"info"`
}

func newViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)

	d := convert.DefaultOptions()
	v.SetDefault("root", "")
	v.SetDefault("out", "")
	v.SetDefault("category", d.Category)
	v.SetDefault("variant", d.Variant)
	v.SetDefault("splits", d.Splits)
	v.SetDefault("subcategories", []string{})
	v.SetDefault("combined", false)
	v.SetDefault("default_width", d.DefaultWidth)
	v.SetDefault("default_height", d.DefaultHeight)
	v.SetDefault("supercategory", d.Supercategory)
	v.SetDefault("info.year", d.Info.Year)
	v.SetDefault("info.version", d.Info.Version)
	v.SetDefault("info.prefix", d.Info.Prefix)
	v.SetDefault("info.url", d.Info.URL)

	v.SetEnvPrefix("COCOCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig reads the optional config file at path (yaml, json or toml,
// chosen by extension) and decodes everything v knows into a Config.
func LoadConfig(v *viper.Viper, path string) (cfg Config, err error) {
	if path != "" {
		v.SetConfigFile(path)
		if err = v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	cfg.Splits = cleanList(cfg.Splits, true)
	cfg.Subcategories = cleanList(cfg.Subcategories, false)
	cfg.Variant = strings.ToLower(strings.TrimSpace(cfg.Variant))

	return
}

func cleanList(in []string, lower bool) (ret []string) {
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if lower {
				part = strings.ToLower(part)
			}
			if part != "" {
				ret = append(ret, part)
			}
		}
	}

	return
}

func (c Config) Options() convert.Options {
	return convert.Options{
		Root:          c.Root,
		Out:           c.Out,
		Category:      c.Category,
		Variant:       c.Variant,
		Splits:        c.Splits,
		Subcategories: c.Subcategories,
		Combined:      c.Combined,
		DefaultWidth:  c.DefaultWidth,
		DefaultHeight: c.DefaultHeight,
		Supercategory: c.Supercategory,
		Info: convert.InfoTemplate{
			Year:    c.Info.Year,
			Version: c.Info.Version,
			Prefix:  c.Info.Prefix,
			URL:     c.Info.URL,
		},
	}
}

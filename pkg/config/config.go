// Package config loads distiller settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tstromberg/distiller/pkg/distill"
	"github.com/tstromberg/distiller/pkg/upload"
)

// EnvPrefix prefixes every environment variable, for example DISTILL_EXPORT_TARGET_DIR.
const EnvPrefix = "DISTILL"

// Config holds all application configuration.
type Config struct {
	Export   ExportConfig   `yaml:"export"`
	Source   SourceConfig   `yaml:"source"`
	Preview  PreviewConfig  `yaml:"preview"`
	Upload   UploadConfig   `yaml:"upload"`
	Describe DescribeConfig `yaml:"describe"`
}

// ExportConfig mirrors distill.Options.
type ExportConfig struct {
	TargetDir string `yaml:"target_dir" split_words:"true"`

	ThumbnailWidth  int `yaml:"thumbnail_width" split_words:"true"`
	ThumbnailHeight int `yaml:"thumbnail_height" split_words:"true"`
	LowresQuality   int `yaml:"lowres_quality" split_words:"true"`

	MidresWidth   int `yaml:"midres_width" split_words:"true"`
	MidresHeight  int `yaml:"midres_height" split_words:"true"`
	MidresQuality int `yaml:"midres_quality" split_words:"true"`

	ScalingSteps int `yaml:"scaling_steps" split_words:"true"`
	Columns      int `yaml:"columns"`
	CellSpacing  int `yaml:"cell_spacing" split_words:"true"`

	Naming          string `yaml:"naming"`
	SequentialStart int    `yaml:"sequential_start" split_words:"true"`

	MidresHTML    bool   `yaml:"midres_html" split_words:"true"`
	Map           bool   `yaml:"map"`
	Mouseover     bool   `yaml:"mouseover"`
	Zip           bool   `yaml:"zip"`
	ZipName       string `yaml:"zip_name" split_words:"true"`
	Highres       bool   `yaml:"highres"`
	RotateHighres bool   `yaml:"rotate_highres" split_words:"true"`
	LinkHighres   bool   `yaml:"link_highres" split_words:"true"`
	RobotsTxt     bool   `yaml:"robots_txt" split_words:"true"`

	BackgroundColor string `yaml:"background_color" split_words:"true"`
	FontColor       string `yaml:"font_color" split_words:"true"`

	MatrixBefore int `yaml:"matrix_before" split_words:"true"`
	MatrixShown  int `yaml:"matrix_shown" split_words:"true"`
	MatrixPerRow int `yaml:"matrix_per_row" split_words:"true"`

	CacheFile string `yaml:"cache_file" split_words:"true"`
}

// SourceConfig selects where the collection tree comes from.
type SourceConfig struct {
	Dir      string `yaml:"dir"`
	XML      string `yaml:"xml"`
	Title    string `yaml:"title"`
	Exiftool bool   `yaml:"exiftool"`
}

// PreviewConfig holds the preview server settings.
type PreviewConfig struct {
	Addr string `yaml:"addr"`
}

// UploadConfig holds the SSH upload target.
type UploadConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	KeyFile    string        `yaml:"key_file" split_words:"true"`
	KnownHosts string        `yaml:"known_hosts" split_words:"true"`
	TargetDir  string        `yaml:"target_dir" split_words:"true"`
	Timeout    time.Duration `yaml:"timeout"`
	Parallel   int           `yaml:"parallel"`
}

// DescribeConfig holds the settings for AI picture descriptions.
type DescribeConfig struct {
	APIKey string `yaml:"api_key" split_words:"true"`
	Model  string `yaml:"model"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	o := distill.DefaultOptions()
	return &Config{
		Export: ExportConfig{
			ThumbnailWidth:  o.ThumbnailWidth,
			ThumbnailHeight: o.ThumbnailHeight,
			LowresQuality:   o.LowresQuality,
			MidresWidth:     o.MidresWidth,
			MidresHeight:    o.MidresHeight,
			MidresQuality:   o.MidresQuality,
			ScalingSteps:    o.ScalingSteps,
			Columns:         o.Columns,
			CellSpacing:     o.CellSpacing,
			Naming:          o.Naming.String(),
			SequentialStart: o.SequentialStart,
			MidresHTML:      o.GenerateMidresHTML,
			ZipName:         o.ZipName,
			BackgroundColor: o.BackgroundColor,
			FontColor:       o.FontColor,
			MatrixBefore:    o.Matrix.Before,
			MatrixShown:     o.Matrix.Shown,
			MatrixPerRow:    o.Matrix.PerRow,
		},
		Source:   SourceConfig{Title: "Pictures"},
		Preview:  PreviewConfig{Addr: "localhost:12800"},
		Upload:   UploadConfig{Port: 22, Timeout: 30 * time.Second, Parallel: 4},
		Describe: DescribeConfig{Model: "gemini-2.5-flash"},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values, which override the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that do not depend on command line flags.
func (c *Config) Validate() error {
	if _, err := distill.ParseNaming(c.Export.Naming); err != nil {
		return err
	}
	if c.Source.Dir != "" && c.Source.XML != "" {
		return errors.New("source dir and source xml are mutually exclusive")
	}
	if c.Upload.Host != "" {
		if c.Upload.User == "" {
			return errors.New("upload user is required")
		}
		if c.Upload.Password == "" && c.Upload.KeyFile == "" {
			return errors.New("upload needs a password or a key file")
		}
		if c.Upload.Port <= 0 || c.Upload.Port > 65535 {
			return fmt.Errorf("upload port %d out of range", c.Upload.Port)
		}
	}
	return nil
}

// Options converts the export section into exporter options.
func (e ExportConfig) Options() (distill.Options, error) {
	n, err := distill.ParseNaming(e.Naming)
	if err != nil {
		return distill.Options{}, err
	}
	return distill.Options{
		TargetDir:          e.TargetDir,
		ThumbnailWidth:     e.ThumbnailWidth,
		ThumbnailHeight:    e.ThumbnailHeight,
		LowresQuality:      e.LowresQuality,
		MidresWidth:        e.MidresWidth,
		MidresHeight:       e.MidresHeight,
		MidresQuality:      e.MidresQuality,
		ScalingSteps:       e.ScalingSteps,
		Columns:            e.Columns,
		CellSpacing:        e.CellSpacing,
		Naming:             n,
		SequentialStart:    e.SequentialStart,
		GenerateMidresHTML: e.MidresHTML,
		GenerateMap:        e.Map,
		GenerateMouseover:  e.Mouseover,
		GenerateZip:        e.Zip,
		ZipName:            e.ZipName,
		ExportHighres:      e.Highres,
		RotateHighres:      e.RotateHighres,
		LinkToHighres:      e.LinkHighres,
		WriteRobotsTxt:     e.RobotsTxt,
		BackgroundColor:    e.BackgroundColor,
		FontColor:          e.FontColor,
		Matrix: distill.MatrixOpts{
			Before: e.MatrixBefore,
			Shown:  e.MatrixShown,
			PerRow: e.MatrixPerRow,
		},
		CacheFile: e.CacheFile,
	}, nil
}

// Target converts the upload section into an upload target.
func (u UploadConfig) Target() upload.Target {
	return upload.Target{
		Host:       u.Host,
		Port:       u.Port,
		User:       u.User,
		Password:   u.Password,
		KeyFile:    u.KeyFile,
		KnownHosts: u.KnownHosts,
		Dir:        u.TargetDir,
		Timeout:    u.Timeout,
		Parallel:   u.Parallel,
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"cogentcore.org/core/colors"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/batch-resizer/pkg/composite"
	"github.com/menta2k/batch-resizer/pkg/convolution"
	"github.com/menta2k/batch-resizer/pkg/fit"
	"github.com/menta2k/batch-resizer/pkg/kernel"
	"github.com/menta2k/batch-resizer/pkg/pipeline"
	"github.com/menta2k/batch-resizer/pkg/prefilter"
	"github.com/menta2k/batch-resizer/pkg/processing"
	"github.com/menta2k/batch-resizer/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Resize   ResizeConfig   `json:"resize" yaml:"resize"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Output   OutputConfig   `json:"output" yaml:"output"`
}

// ResizeConfig describes the geometry and anti-aliasing of every output
type ResizeConfig struct {
	Width        float64 `json:"width" yaml:"width"`
	Height       float64 `json:"height" yaml:"height"`
	Mode         string  `json:"mode" yaml:"mode"`
	PreFilter    bool    `json:"prefilter" yaml:"prefilter"`
	FilterFactor float64 `json:"filter_factor" yaml:"filter_factor"`
	Formula      string  `json:"formula" yaml:"formula"`
	Interpolator string  `json:"interpolator" yaml:"interpolator"`
	// Background is a CSS color name or hex fill; empty keeps the canvas transparent.
	Background string `json:"background" yaml:"background"`
}

// PipelineConfig holds configuration for batch execution
type PipelineConfig struct {
	Backend        string `json:"backend" yaml:"backend"`
	Concurrency    int    `json:"concurrency" yaml:"concurrency"`
	Serialize      bool   `json:"serialize" yaml:"serialize"`
	MinImageSize   int    `json:"min_image_size" yaml:"min_image_size"`
	MaxTextureSize int    `json:"max_texture_size" yaml:"max_texture_size"`
	MaxKernelTaps  int    `json:"max_kernel_taps" yaml:"max_kernel_taps"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format" yaml:"format"`
	Quality   int    `json:"quality" yaml:"quality"`
	Lossless  bool   `json:"lossless" yaml:"lossless"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	Suffix    string `json:"suffix" yaml:"suffix"`
	// Archive, when set, bundles every output into this zip file instead of
	// writing loose files.
	Archive string `json:"archive" yaml:"archive"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Resize: ResizeConfig{
			Width:        905,
			Height:       500,
			Mode:         fit.Cover.String(),
			PreFilter:    true,
			FilterFactor: prefilter.DefaultFilterFactor,
			Formula:      kernel.FormulaJoint.String(),
			Interpolator: composite.DefaultInterpolator,
		},
		Pipeline: PipelineConfig{
			Backend:        convolution.ShaderBackend,
			Concurrency:    0,
			Serialize:      true,
			MinImageSize:   1,
			MaxTextureSize: convolution.DefaultMaxTextureSize,
			MaxKernelTaps:  convolution.DefaultMaxKernelTaps,
		},
		Output: OutputConfig{
			Format:    string(processing.FormatJPEG),
			Quality:   90,
			OutputDir: "./output",
			Suffix:    "_resized",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields missing
// from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as YAML or JSON depending on the extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return fmt.Errorf("resize: %w", err)
	}

	if c.Pipeline.Concurrency < 0 {
		return fmt.Errorf("pipeline.concurrency must not be negative")
	}

	if c.Pipeline.MinImageSize < 1 {
		return fmt.Errorf("pipeline.min_image_size must be positive")
	}

	if c.Pipeline.MaxTextureSize < 1 || c.Pipeline.MaxKernelTaps < 1 {
		return fmt.Errorf("pipeline.max_texture_size and pipeline.max_kernel_taps must be positive")
	}

	if _, err := c.Backend(); err != nil {
		return fmt.Errorf("pipeline.backend: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if _, err := processing.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	return nil
}

// Params converts the resize section into pipeline parameters
func (c *Config) Params() (pipeline.Params, error) {
	mode, err := fit.ParseFitMode(c.Resize.Mode)
	if err != nil {
		return pipeline.Params{}, err
	}
	formula, err := kernel.ParseFormula(c.Resize.Formula)
	if err != nil {
		return pipeline.Params{}, err
	}
	bg, err := ParseColor(c.Resize.Background)
	if err != nil {
		return pipeline.Params{}, err
	}

	params := pipeline.Params{
		Dest:         types.Dimensions{Width: c.Resize.Width, Height: c.Resize.Height},
		Mode:         mode,
		PreFilter:    c.Resize.PreFilter,
		FilterFactor: c.Resize.FilterFactor,
		Formula:      formula,
		Interpolator: c.Resize.Interpolator,
		Background:   bg,
	}
	if err := params.Validate(); err != nil {
		return pipeline.Params{}, err
	}
	return params, nil
}

// Backend builds the configured convolution backend
func (c *Config) Backend() (convolution.Backend, error) {
	b, err := convolution.NewBackend(c.Pipeline.Backend,
		convolution.WithMaxTextureSize(c.Pipeline.MaxTextureSize),
		convolution.WithMaxKernelTaps(c.Pipeline.MaxKernelTaps),
	)
	if err != nil {
		return nil, err
	}
	if c.Pipeline.Serialize {
		b = convolution.Serialized(b)
	}
	return b, nil
}

// Encoder builds the output encoder
func (c *Config) Encoder() (*processing.Encoder, error) {
	format, err := processing.ParseFormat(c.Output.Format)
	if err != nil {
		return nil, err
	}
	return processing.NewEncoder(format, c.Output.Quality, c.Output.Lossless), nil
}

// ParseColor parses a CSS color name or a #rgb, #rrggbb or #rrggbbaa hex
// value. The empty string yields nil.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "#") {
		if c, err := colors.FromName(strings.ToLower(s)); err == nil {
			return c, nil
		}
	}
	hex := strings.TrimPrefix(s, "#")
	if hex == "" || strings.Trim(hex, "0123456789abcdefABCDEF") != "" {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	c, err := colors.FromHex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "batch-resizer", "config.yaml")
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

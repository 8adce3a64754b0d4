// Package config provides configuration loading and management for dosecast.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel rendering
		NumCores int `yaml:"numCores"`

		// CompactThreshold is the proportion of the maximum dose below which
		// voxels are cropped away after loading
		CompactThreshold float64 `yaml:"compactThreshold"`

		// Interpolation selects the sampling mode: nearest or linear
		Interpolation string `yaml:"interpolation"`

		// MaxVoxels caps the size of a dose volume
		MaxVoxels int `yaml:"maxVoxels"`
	} `yaml:"processing"`

	// Display parameters for the interactive viewer
	Display struct {
		Width  int     `yaml:"width"`
		Height int     `yaml:"height"`
		FOV    float64 `yaml:"fov"`

		// Colormap is jet or gray
		Colormap string `yaml:"colormap"`

		// Supersample renders into a texture this many times larger than the
		// screen and downsamples on export
		Supersample int `yaml:"supersample"`
	} `yaml:"display"`

	// Camera motion parameters
	Camera struct {
		// Speed is the normal acceleration in mm/s^2
		Speed float64 `yaml:"speed"`

		// Turbo and Slow replace Speed while shift or alt is held
		Turbo float64 `yaml:"turbo"`
		Slow  float64 `yaml:"slow"`

		// Friction is the kinetic friction coefficient
		Friction float64 `yaml:"friction"`

		// TurnStep is the half-angle in radians of the rotation per pixel of
		// mouse motion
		TurnStep float64 `yaml:"turnStep"`
	} `yaml:"camera"`

	// Spin animation parameters
	Spin struct {
		// Colatitude of the orbit in degrees from +z
		Colatitude float64 `yaml:"colatitude"`

		// Distance from the orbit centre in mm
		Distance float64 `yaml:"distance"`

		FOV    float64 `yaml:"fov"`
		Frames int     `yaml:"frames"`

		// FrameTime is the delay between frames in milliseconds; zero spreads
		// one second across all frames
		FrameTime int `yaml:"frameTime"`

		Width  int `yaml:"width"`
		Height int `yaml:"height"`

		// Offset shifts the orbit centre away from the dose centroid
		Offset [3]float64 `yaml:"offset"`

		// Compaction threshold used before spinning
		Compaction float64 `yaml:"compaction"`

		Output string `yaml:"output"`
	} `yaml:"spin"`

	// Report parameters
	Report struct {
		Size       int     `yaml:"size"`
		FOV        float64 `yaml:"fov"`
		Quality    int     `yaml:"quality"`
		Compaction float64 `yaml:"compaction"`
		OutputDir  string  `yaml:"outputDir"`
	} `yaml:"report"`

	// Server parameters for the interactive viewer
	Server struct {
		Addr string `yaml:"addr"`

		// Encoding of frames pushed to clients: jpeg, png or raw
		Encoding string `yaml:"encoding"`

		Quality int `yaml:"quality"`

		// TickMillis is the simulation step
		TickMillis int `yaml:"tickMillis"`
	} `yaml:"server"`

	// Storage parameters; an empty bucket disables uploads. Credentials
	// come from S3_ACCESS_KEY and S3_SECRET_KEY, or the default AWS chain.
	Storage struct {
		Bucket string `yaml:"bucket"`
		Region string `yaml:"region"`
		Prefix string `yaml:"prefix"`

		// Endpoint selects an S3-compatible service instead of AWS
		Endpoint string `yaml:"endpoint"`

		// UploadTimeout is the per-object limit in seconds
		UploadTimeout int `yaml:"uploadTimeout"`
	} `yaml:"storage"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.CompactThreshold = 0.01
	cfg.Processing.Interpolation = "nearest"
	cfg.Processing.MaxVoxels = 512 * 512 * 512

	// Set default display parameters
	cfg.Display.Width = 512
	cfg.Display.Height = 288
	cfg.Display.FOV = 90
	cfg.Display.Colormap = "jet"
	cfg.Display.Supersample = 1

	// Set default camera parameters
	cfg.Camera.Speed = 100
	cfg.Camera.Turbo = 1000
	cfg.Camera.Slow = 10
	cfg.Camera.Friction = 4
	cfg.Camera.TurnStep = math.Pi / 1080

	// Set default spin parameters
	cfg.Spin.Colatitude = 90
	cfg.Spin.Distance = 200
	cfg.Spin.FOV = 75
	cfg.Spin.Frames = 8
	cfg.Spin.Width = 512
	cfg.Spin.Height = 512
	cfg.Spin.Compaction = 0.05
	cfg.Spin.Output = "spin.gif"

	// Set default report parameters
	cfg.Report.Size = 1024
	cfg.Report.FOV = 65
	cfg.Report.Quality = 90
	cfg.Report.Compaction = 0.01
	cfg.Report.OutputDir = "."

	// Set default server parameters
	cfg.Server.Addr = ":8080"
	cfg.Server.Encoding = "jpeg"
	cfg.Server.Quality = 85
	cfg.Server.TickMillis = 16

	// Set default storage parameters
	cfg.Storage.Region = "us-east-1"
	cfg.Storage.UploadTimeout = 10

	// Set default output parameters
	cfg.Output.Verbose = true

	return cfg
}

// Validate reports the first out-of-range value
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if err := checkThreshold("processing.compactThreshold", c.Processing.CompactThreshold); err != nil {
		return err
	}
	switch strings.ToLower(c.Processing.Interpolation) {
	case "", "nearest", "linear", "trilinear":
	default:
		return fmt.Errorf("processing.interpolation must be nearest or linear, got %q", c.Processing.Interpolation)
	}
	if c.Processing.MaxVoxels < 0 {
		return fmt.Errorf("processing.maxVoxels must not be negative, got %d", c.Processing.MaxVoxels)
	}

	if err := checkScreen("display", c.Display.Width, c.Display.Height, c.Display.FOV); err != nil {
		return err
	}
	if c.Display.Supersample < 1 {
		return fmt.Errorf("display.supersample must be at least 1, got %d", c.Display.Supersample)
	}
	if c.Camera.Friction < 0 {
		return fmt.Errorf("camera.friction must not be negative, got %g", c.Camera.Friction)
	}

	if err := checkScreen("spin", c.Spin.Width, c.Spin.Height, c.Spin.FOV); err != nil {
		return err
	}
	if c.Spin.Frames < 1 {
		return fmt.Errorf("spin.frames must be at least 1, got %d", c.Spin.Frames)
	}
	if c.Spin.FrameTime < 0 {
		return fmt.Errorf("spin.frameTime must not be negative, got %d", c.Spin.FrameTime)
	}
	if err := checkThreshold("spin.compaction", c.Spin.Compaction); err != nil {
		return err
	}

	if err := checkScreen("report", c.Report.Size, c.Report.Size, c.Report.FOV); err != nil {
		return err
	}
	if c.Report.Quality < 1 || c.Report.Quality > 100 {
		return fmt.Errorf("report.quality must be in [1, 100], got %d", c.Report.Quality)
	}
	if err := checkThreshold("report.compaction", c.Report.Compaction); err != nil {
		return err
	}

	switch strings.ToLower(c.Server.Encoding) {
	case "jpeg", "jpg", "png", "raw":
	default:
		return fmt.Errorf("server.encoding must be jpeg, png or raw, got %q", c.Server.Encoding)
	}
	if c.Server.Quality < 1 || c.Server.Quality > 100 {
		return fmt.Errorf("server.quality must be in [1, 100], got %d", c.Server.Quality)
	}
	if c.Server.TickMillis < 1 {
		return fmt.Errorf("server.tickMillis must be at least 1, got %d", c.Server.TickMillis)
	}
	if c.Storage.Bucket != "" && c.Storage.UploadTimeout < 1 {
		return fmt.Errorf("storage.uploadTimeout must be at least 1, got %d", c.Storage.UploadTimeout)
	}
	return nil
}

func checkScreen(section string, w, h int, fov float64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%s dimensions must be positive, got %dx%d", section, w, h)
	}
	if !(fov > 0 && fov <= 180) {
		return fmt.Errorf("%s.fov must be in (0, 180], got %g", section, fov)
	}
	return nil
}

func checkThreshold(name string, v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%s must be in [0, 1], got %g", name, v)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

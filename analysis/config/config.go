// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config controls which functions get analyzed and how results are
// reported. If some field is not defined in the config file, it will be
// empty/zero in the struct. Private fields are not populated from a yaml
// file, but computed after initialization.
type Config struct {
	Options

	sourceFile string

	// if the FuncFilter is specified
	funcFilterRegex *regexp.Regexp
}

// Options are the flat settings of the analysis.
type Options struct {
	// VizDir is the directory visualization output is written into. If a
	// Viz* option is true and VizDir is empty, a directory is created next
	// to the config file.
	VizDir string `yaml:"viz-dir"`

	// FuncFilter restricts the analysis to functions whose name matches
	// the regex. Empty means analyze everything.
	FuncFilter string `yaml:"func-filter"`

	// VizDot enables dot output of the capability states per statement
	VizDot bool `yaml:"viz-dot"`

	// VizJSON enables json output of per-block iteration states
	VizJSON bool `yaml:"viz-json"`

	// SkipRegionCheck disables the consistency check of the region facts
	// against the loans of the body. Only for experimentation; results on
	// inconsistent facts may be meaningless.
	SkipRegionCheck bool `yaml:"skip-region-check"`

	// MaxIterations bounds the number of times the fixpoint visits a
	// single block. Default is DefaultMaxIterations.
	// If provided MaxIterations is <= 0, then the default is used.
	MaxIterations int `yaml:"max-iterations"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			VizDir:          "",
			FuncFilter:      "",
			VizDot:          false,
			VizJSON:         false,
			SkipRegionCheck: false,
			MaxIterations:   DefaultMaxIterations,
			LogLevel:        int(InfoLevel),
			SilenceWarn:     false,
		},
	}
}

// Load reads a configuration from a yaml file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	if cfg.VizDot || cfg.VizJSON {
		if err := setVizDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	// Set the MaxIterations default if it is <= 0
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	if cfg.FuncFilter != "" {
		r, err := regexp.Compile(cfg.FuncFilter)
		if err == nil {
			cfg.funcFilterRegex = r
		}
	}

	return cfg, nil
}

func setVizDir(c *Config, filename string) error {
	if c.VizDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-viz")
		if err != nil {
			return fmt.Errorf("could not create temp dir for visualization output")
		}
		c.VizDir = tmpdir
		return nil
	}
	err := os.Mkdir(c.VizDir, 0750)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("could not create directory %s", c.VizDir)
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchFuncFilter returns true if the function name matches the function
// filter set in the config file. If no filter has been set, this matches
// anything. When a filter was specified but could not be compiled to a
// regex, the safe fallback is a prefix check.
func (c Config) MatchFuncFilter(funcname string) bool {
	if c.funcFilterRegex != nil {
		return c.funcFilterRegex.MatchString(funcname)
	} else if c.FuncFilter != "" {
		return strings.HasPrefix(funcname, c.FuncFilter)
	} else {
		return true
	}
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxIterations returns true if the input exceeds the maximum
// iteration parameter of the configuration. If the configuration setting
// is <= 0, this returns false.
func (c Config) ExceedsMaxIterations(n int) bool {
	if c.MaxIterations <= 0 {
		return false
	}
	return n > c.MaxIterations
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path, overlays a ".env" file in the working
// directory (if present) into the process environment, expands ${VAR} references in the
// raw YAML text, and decodes the result into a Config with defaults
// applied.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(raw))

	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &rawMap); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	var cfg Config
	if err := decodeConfig(rawMap, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}

	cfg.SetDefaults()

	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	return &cfg, nil
}

// decodeConfig decodes a raw YAML map into a Config, converting duration
// strings like "120s" into the time.Duration fields that use them.
// yaml.v3 has no notion of time.Duration on its own and would otherwise
// fail to decode every *_timeout/*_delay/*_expiry field in
// config.example.yaml; mapstructure's hook is what actually understands
// the conversion.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("building config decoder: %w", err)
	}
	return decoder.Decode(input)
}

// loadDotEnv loads a ".env" file from the working directory into the
// process environment, if one exists. A missing file is not an error;
// every other read failure is.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(".env")
}

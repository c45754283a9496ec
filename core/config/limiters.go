package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/gate/pkg/ratelimiter"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LimitersFile is the YAML document describing named throttle limiters:
//
//	limiters:
//	  mail:
//	    capacity: 10
//	    refill_rate: 10
//	    refill_interval: 1m
//
// ${VAR} references are replaced with environment values before parsing.
type LimitersFile struct {
	Limiters map[string]ratelimiter.Config `yaml:"limiters"`
}

// LoadLimiters reads a limiter table from path. An empty path yields an empty table.
func LoadLimiters(path string) (map[string]ratelimiter.Config, error) {
	if path == "" {
		return map[string]ratelimiter.Config{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLimitersFile, err)
	}
	defer f.Close()

	limiters, err := ParseLimiters(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return limiters, nil
}

// ParseLimiters decodes and validates a limiter table. Unknown keys are rejected.
func ParseLimiters(r io.Reader) (map[string]ratelimiter.Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLimitersFile, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(interpolateEnv(raw)))
	dec.KnownFields(true)

	var file LimitersFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLimiters, err)
	}

	if file.Limiters == nil {
		file.Limiters = map[string]ratelimiter.Config{}
	}
	for name, cfg := range file.Limiters {
		if name == "" {
			return nil, fmt.Errorf("%w: empty limiter name", ErrInvalidLimiters)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLimiters, name, err)
		}
	}
	return file.Limiters, nil
}

func interpolateEnv(input []byte) []byte {
	return envVarPattern.ReplaceAllFunc(input, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		if value, ok := os.LookupEnv(string(name)); ok {
			return []byte(value)
		}
		// Left as is so validation reports it
		return match
	})
}

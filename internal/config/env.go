package config

import (
	"fmt"
	"strconv"
	"strings"
)

type envKind int

const (
	envString envKind = iota
	envInt
	envFloat
	envBool
)

// envKeys maps schema fields to their variable types. Variable names are
// EnvPrefix plus the upper-cased field name.
var envKeys = map[string]envKind{
	"addr":              envString,
	"db":                envString,
	"pg_url":            envString,
	"redis_url":         envString,
	"channel":           envString,
	"server":            envString,
	"history_retention": envInt,
	"rate_limit":        envFloat,
	"rate_burst":        envInt,
	"poll_interval":     envString,
	"request_timeout":   envString,
	"verbose":           envBool,
}

// EnvName returns the environment variable for a config field.
func EnvName(field string) string {
	return EnvPrefix + strings.ToUpper(field)
}

// LoadEnv applies QUEUEBOARD_* variables over cfg. Empty variables are
// ignored.
func LoadEnv(cfg *Config, lookup func(string) (string, bool)) error {
	raw := map[string]any{}
	for field, kind := range envKeys {
		name := EnvName(field)
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		parsed, err := parseEnv(v, kind)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		raw[field] = parsed
	}
	if err := apply(cfg, raw); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

func parseEnv(v string, kind envKind) (any, error) {
	switch kind {
	case envInt:
		return strconv.Atoi(v)
	case envFloat:
		return strconv.ParseFloat(v, 64)
	case envBool:
		return strconv.ParseBool(v)
	}
	return v, nil
}

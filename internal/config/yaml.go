package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// isYAMLPath reports whether path's extension selects decodeYAML in
// Parse; anything else (including no extension) decodes as JSON.
func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// decodeJSON strictly decodes b into cfg: unknown fields and trailing
// data after the top-level object both fail the load instead of
// silently ignoring a typo'd key or a stray second document.
func decodeJSON(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing data")
		}
		return err
	}
	return nil
}

// decodeYAML strictly decodes b into cfg using go.yaml.in/yaml's own
// struct unmarshaling (Config's fields carry yaml tags mirroring
// their json ones) rather than round-tripping through
// map[string]any and encoding/json: a merge key, anchor, or
// multi-document stream resolves the way the YAML spec says it
// should, not however encoding/json would interpret it after the
// generic conversion.
func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

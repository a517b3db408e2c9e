package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML (or JSON) configuration document. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// LoadFiles reads and merges configuration files in order. Relative link
// sources are resolved against the directory of the file declaring them.
func LoadFiles(paths ...string) (*Config, error) {
	merged := &Config{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", p, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		dir := filepath.Dir(p)
		for i, l := range cfg.Links {
			if l.Type == LinkProtobuf && l.Src != "" && !filepath.IsAbs(l.Src) {
				cfg.Links[i].Src = filepath.Join(dir, l.Src)
			}
		}
		if err := merged.Merge(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return merged, nil
}

// Merge folds other into c. Scalar settings in other win when set; a field
// defined in both is a conflict.
func (c *Config) Merge(other *Config) error {
	mergeServer(&c.Server, other.Server)
	mergeUpstream(&c.Upstream, other.Upstream)
	if other.Schema.Query != "" {
		c.Schema.Query = other.Schema.Query
	}
	if other.Schema.Mutation != "" {
		c.Schema.Mutation = other.Schema.Mutation
	}
	c.Links = append(c.Links, other.Links...)
	if len(other.Types) > 0 && c.Types == nil {
		c.Types = make(map[string]*Type, len(other.Types))
	}
	for _, name := range other.TypeNames() {
		typ := other.Types[name]
		existing, ok := c.Types[name]
		if !ok {
			c.Types[name] = typ
			continue
		}
		if existing.Kind != typ.Kind && typ.Kind != "" && existing.Kind != "" {
			return fmt.Errorf("type %q declared as both %s and %s", name, existing.Kind, typ.Kind)
		}
		if existing.Fields == nil && len(typ.Fields) > 0 {
			existing.Fields = make(map[string]*Field, len(typ.Fields))
		}
		for _, fname := range typ.FieldNames() {
			if _, dup := existing.Fields[fname]; dup {
				return fmt.Errorf("field %s.%s is defined more than once", name, fname)
			}
			existing.Fields[fname] = typ.Fields[fname]
		}
		existing.Values = append(existing.Values, typ.Values...)
	}
	return nil
}

func mergeServer(dst *Server, src Server) {
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.QueryComplexity != 0 {
		dst.QueryComplexity = src.QueryComplexity
	}
	if src.QueryDepth != 0 {
		dst.QueryDepth = src.QueryDepth
	}
	if src.PlanCacheSize != 0 {
		dst.PlanCacheSize = src.PlanCacheSize
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.GraphiQL {
		dst.GraphiQL = true
	}
	for k, v := range src.Vars {
		if dst.Vars == nil {
			dst.Vars = make(map[string]string, len(src.Vars))
		}
		dst.Vars[k] = v
	}
}

func mergeUpstream(dst *Upstream, src Upstream) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.CacheSize != 0 {
		dst.CacheSize = src.CacheSize
	}
	dst.AllowedHeaders = append(dst.AllowedHeaders, src.AllowedHeaders...)
}

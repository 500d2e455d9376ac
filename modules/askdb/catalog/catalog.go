package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resource describes one queryable entity. Immutable after load; the field
// list is the complete allowlist for that resource.
type Resource struct {
	Key         string   `yaml:"key"`
	Collection  string   `yaml:"collection"`
	ScopeField  string   `yaml:"scope_field"`
	Description string   `yaml:"description"`
	Fields      []string `yaml:"fields"`
}

type Catalog struct {
	keys      []string
	byKey     map[string]Resource
	fieldSets map[string]map[string]struct{}
}

type catalogFile struct {
	Version   int        `yaml:"version"`
	Resources []Resource `yaml:"resources"`
}

func ParseCatalogYAML(b []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, err
	}
	if cf.Version != 1 {
		return nil, errors.New("catalog: unsupported version")
	}
	if len(cf.Resources) == 0 {
		return nil, errors.New("catalog: empty")
	}

	c := &Catalog{
		keys:      make([]string, 0, len(cf.Resources)),
		byKey:     make(map[string]Resource, len(cf.Resources)),
		fieldSets: make(map[string]map[string]struct{}, len(cf.Resources)),
	}
	for _, r := range cf.Resources {
		r.Key = strings.ToLower(strings.TrimSpace(r.Key))
		r.Collection = strings.TrimSpace(r.Collection)
		r.ScopeField = strings.TrimSpace(r.ScopeField)
		if r.Key == "" || r.Collection == "" {
			return nil, errors.New("catalog: resource key and collection required")
		}
		if _, dup := c.byKey[r.Key]; dup {
			return nil, errors.New("catalog: duplicate resource key")
		}
		if len(r.Fields) == 0 {
			return nil, errors.New("catalog: resource fields empty")
		}
		set := make(map[string]struct{}, len(r.Fields))
		fields := make([]string, 0, len(r.Fields))
		for _, f := range r.Fields {
			f = strings.TrimSpace(f)
			if f == "" {
				return nil, errors.New("catalog: blank field name")
			}
			if _, dup := set[f]; dup {
				return nil, errors.New("catalog: duplicate field name")
			}
			set[f] = struct{}{}
			fields = append(fields, f)
		}
		r.Fields = fields
		c.keys = append(c.keys, r.Key)
		c.byKey[r.Key] = r
		c.fieldSets[r.Key] = set
	}
	return c, nil
}

func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalogYAML(b)
}

// LoadCatalogFromEnv reads ASKDB_CATALOG_PATH or falls back to the default
// config location.
func LoadCatalogFromEnv() (*Catalog, error) {
	path := os.Getenv("ASKDB_CATALOG_PATH")
	if path == "" {
		p, err := findConfigFile("config/askdb/catalog.yaml")
		if err != nil {
			return nil, err
		}
		path = p
	}
	return LoadCatalog(path)
}

func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c *Catalog) Resource(key string) (Resource, bool) {
	r, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	return r, ok
}

func (c *Catalog) Has(key string) bool {
	_, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Fields returns the ordered allowed field names of a resource, copied.
func (c *Catalog) Fields(key string) []string {
	r, ok := c.Resource(key)
	if !ok {
		return nil
	}
	out := make([]string, len(r.Fields))
	copy(out, r.Fields)
	return out
}

func findConfigFile(rel string) (string, error) {
	path := rel
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("catalog: config file not found: " + rel)
}

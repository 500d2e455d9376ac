package server

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tenant struct {
	ID     string `yaml:"id"`
	Domain string `yaml:"domain"`
	Name   string `yaml:"name"`
}

type tenantsFile struct {
	Version int      `yaml:"version"`
	Tenants []Tenant `yaml:"tenants"`
}

func loadTenants() (map[string]Tenant, error) {
	path := os.Getenv("TENANTS_PATH")
	if path == "" {
		p, err := defaultConfigPath("config/tenants.yaml")
		if err != nil {
			return nil, errors.New("server: tenants config not found")
		}
		path = p
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tf tenantsFile
	if err := yaml.Unmarshal(b, &tf); err != nil {
		return nil, err
	}
	if tf.Version != 1 {
		return nil, errors.New("tenants: unsupported version")
	}
	if len(tf.Tenants) == 0 {
		return nil, errors.New("tenants: empty")
	}

	m := make(map[string]Tenant, len(tf.Tenants))
	for _, t := range tf.Tenants {
		if t.Domain == "" || t.ID == "" {
			return nil, errors.New("tenants: invalid tenant")
		}
		m[t.Domain] = t
	}
	return m, nil
}

func defaultConfigPath(rel string) (string, error) {
	path := rel
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: config file not found: " + rel)
}

func hostWithoutPort(host string) string {
	if h, _, ok := strings.Cut(host, ":"); ok {
		return h
	}
	return host
}

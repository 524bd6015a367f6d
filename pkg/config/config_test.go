package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	p := writeFile(t, "name: ${SAMPLE_NAME}\n")

	cfg := sample{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, default should survive", cfg.Port)
	}
}

func TestLoadValidates(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	err := Load(p, &sample{})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadParseError(t *testing.T) {
	p := writeFile(t, "port: [\n")
	if err := Load(p, &sample{Port: 1}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg := sample{Name: "default", Port: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("found should be false")
	}
	if cfg.Name != "default" {
		t.Errorf("Name = %q", cfg.Name)
	}

	if _, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &sample{}); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoadOptionalExistingFile(t *testing.T) {
	p := writeFile(t, "port: 9000\n")
	cfg := sample{Port: 1}
	found, err := LoadOptional(p, &cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !found || cfg.Port != 9000 {
		t.Errorf("found = %v, port = %d", found, cfg.Port)
	}
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/livefir/blaze/errs"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Database.Path != "blazedemo.db" {
		t.Errorf("Database.Path = %q, want blazedemo.db", config.Database.Path)
	}
	if config.Collection != "posts" {
		t.Errorf("Collection = %q, want posts", config.Collection)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blazedemo.yaml")
	data := "database:\n  path: /tmp/feed.db\nseed: 40\nminify: true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := &Config{
		Database:   Database{Path: "/tmp/feed.db"},
		Collection: "posts",
		Seed:       40,
		Minify:     true,
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{name: "seed too large", data: "seed: 5000\n", field: "seed"},
		{name: "negative seed", data: "seed: -1\n", field: "seed"},
		{name: "empty database path", data: "database:\n  path: \"\"\n", field: "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "blazedemo.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if !errors.Is(err, errs.ErrInvalidArgument) {
				t.Fatalf("LoadConfig() error = %v, want ErrInvalidArgument", err)
			}
			var multi errs.MultiError
			if !errors.As(err, &multi) {
				t.Fatalf("error %v does not carry field errors", err)
			}
			if len(multi) != 1 || multi[0].Field != tt.field {
				t.Errorf("field errors = %v, want one on %s", multi, tt.field)
			}
		})
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blazedemo.yaml")
	if err := os.WriteFile(path, []byte("seed: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() should fail on malformed YAML")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blazedemo.yaml")
	config := DefaultConfig()
	config.Debug = true
	config.Seed = 3

	if err := SaveConfig(path, config); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(config, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	config.Seed = 2000
	if err := SaveConfig(path, config); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("SaveConfig(invalid) error = %v, want ErrInvalidArgument", err)
	}
}

package netio

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	tomlConfig, err := LoadConfig("testdata/config.toml")
	if err != nil {
		t.Fatalf("LoadConfig(toml): %+v", err)
	}
	t.Logf("%+v", tomlConfig)

	yamlConfig, err := LoadConfig("testdata/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig(yaml): %+v", err)
	}
	t.Logf("%+v", yamlConfig)

	for _, c := range []*EventLoopConfig{tomlConfig, yamlConfig} {
		if c.EventBufferSize != 128 {
			t.Fatalf("event_buffer_size = %d, want 128", c.EventBufferSize)
		}
		if c.ResolverCacheTTL != 30*time.Second {
			t.Fatalf("resolver_cache_ttl = %s, want 30s", c.ResolverCacheTTL)
		}
		if c.MaxOpenFiles != 4096 {
			t.Fatalf("max_open_files = %d, want 4096", c.MaxOpenFiles)
		}
	}
}

func TestLoadConfigUnsupportedExtension(t *testing.T) {
	if _, err := LoadConfig("testdata/config.json"); err == nil {
		t.Fatalf("LoadConfig with an unsupported extension unexpectedly succeeded")
	}
}

func TestApplyDefaultsFillsUnsetFields(t *testing.T) {
	c := EventLoopConfig{Name: "bare"}
	c.applyDefaults()
	if c.EventBufferSize != defaultEventBufferSize {
		t.Fatalf("event_buffer_size = %d, want %d", c.EventBufferSize, defaultEventBufferSize)
	}
	if c.ResolverCacheTTL != defaultResolverCacheTTL {
		t.Fatalf("resolver_cache_ttl = %s, want %s", c.ResolverCacheTTL, defaultResolverCacheTTL)
	}
}

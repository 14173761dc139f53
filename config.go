package netio

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Global holds process-wide tunables that don't belong to any one loop.
type Global struct {
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// EventLoopConfig configures one EventLoop instance. It is loadable from
// either TOML or YAML via LoadConfig, in the same extension-dispatched
// fashion as the teacher's Config/LoadConfig.
type EventLoopConfig struct {
	Global Global `yaml:"global" toml:"global"`

	// Name identifies the loop in log lines.
	Name string `yaml:"name" toml:"name"`
	// LockOsThread pins the loop goroutine to its OS thread for the
	// lifetime of the run loop, matching the teacher's EventLoopConfig.
	LockOsThread bool `yaml:"lock_os_thread" toml:"lock_os_thread"`
	// EventBufferSize bounds how many ready events the reactor drains per
	// wait call.
	EventBufferSize int `yaml:"event_buffer_size" toml:"event_buffer_size"`
	// SocketBufferSize is the SO_RCVBUF/SO_SNDBUF size applied to every UDP
	// socket the loop opens (see socket_options.go).
	SocketBufferSize int `yaml:"socket_buffer_size" toml:"socket_buffer_size"`
	// ResolverCacheSize bounds the number of hostnames the resolver cache
	// holds.
	ResolverCacheSize int64 `yaml:"resolver_cache_size" toml:"resolver_cache_size"`
	// ResolverCacheTTL is how long a resolved address is trusted before a
	// fresh lookup is required.
	ResolverCacheTTL time.Duration `yaml:"resolver_cache_ttl" toml:"resolver_cache_ttl"`
	// MaxOpenFiles raises RLIMIT_NOFILE at startup if non-zero (see
	// socket_options.go's raiseFileLimit, adapted from the teacher's
	// monitor.go).
	MaxOpenFiles uint64 `yaml:"max_open_files" toml:"max_open_files"`
}

const (
	defaultEventBufferSize   = 256
	defaultSocketBufferSize  = 8192
	defaultResolverCacheSize = 1 << 14
	defaultResolverCacheTTL  = 5 * time.Minute
)

// DefaultEventLoopConfig returns the tunables the teacher hardcodes in
// socket_options_applier.go and netpoll.go, now overridable.
func DefaultEventLoopConfig(name string) EventLoopConfig {
	return EventLoopConfig{
		Name:              name,
		EventBufferSize:   defaultEventBufferSize,
		SocketBufferSize:  defaultSocketBufferSize,
		ResolverCacheSize: defaultResolverCacheSize,
		ResolverCacheTTL:  defaultResolverCacheTTL,
	}
}

func (c *EventLoopConfig) applyDefaults() {
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = defaultEventBufferSize
	}
	if c.SocketBufferSize <= 0 {
		c.SocketBufferSize = defaultSocketBufferSize
	}
	if c.ResolverCacheSize <= 0 {
		c.ResolverCacheSize = defaultResolverCacheSize
	}
	if c.ResolverCacheTTL <= 0 {
		c.ResolverCacheTTL = defaultResolverCacheTTL
	}
}

// LoadConfig reads an EventLoopConfig from a TOML or YAML file, dispatched
// on its extension, the same way the teacher's LoadConfig does for Config.
func LoadConfig(filePath string) (*EventLoopConfig, error) {
	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	config := &EventLoopConfig{}
	switch {
	case strings.HasSuffix(filePath, ".toml"):
		err = toml.Unmarshal(file, config)
	case strings.HasSuffix(filePath, ".yaml"), strings.HasSuffix(filePath, ".yml"):
		err = yaml.Unmarshal(file, config)
	default:
		return nil, fmt.Errorf("netio: unsupported config extension: %s", filePath)
	}
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	return config, nil
}

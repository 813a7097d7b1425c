// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config loads the YAML file a deployment points a loop.Loop at:
// the listen address, the slab/buffer sizing, the tick cadence, and the
// optional compression and accept-rate-limit knobs.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/Bruce0203/socket-server/reactor"
)

// Config is the on-disk shape one address's event loop is built from.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	MaxConnections  int           `yaml:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	TickInterval    time.Duration `yaml:"tick_interval"`

	// Compress asks for stream.NewSnappyConn between the TCP layer and
	// whatever framing sits above it. Nothing in this module reads it; the
	// deployment's NewStreamLayer function applies it.
	Compress bool `yaml:"compress"`

	// AcceptRateLimit, if nonzero, bounds accepted connections per second;
	// AcceptBurst sets the token bucket's burst size (defaults to
	// AcceptRateLimit itself when unset). Zero disables rate limiting.
	AcceptRateLimit float64 `yaml:"accept_rate_limit"`
	AcceptBurst     int     `yaml:"accept_burst"`

	// MetricsPath, if set, enables reactor.Metrics CSV reporting to this
	// path (passed through time.Time.Format the way std/snmp.go names its
	// own rotated log files).
	MetricsPath string `yaml:"metrics_path"`
}

// defaults fill fields the YAML leaves unset: a modest connection ceiling,
// 4KiB buffers either side, and a one-second tick. loop.Config itself
// applies no defaults.
const (
	defaultMaxConnections  = 1024
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096
	defaultTickInterval    = time.Second
)

// Load reads and parses the YAML file at path, then validates and fills
// in defaults via validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read file")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse yaml")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate fills in unset fields with their defaults and rejects
// combinations that would never produce a usable loop.
func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr is required")
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = defaultMaxConnections
	}
	if c.MaxConnections < 0 {
		return errors.Errorf("config: max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}
	if c.ReadBufferSize < 0 {
		return errors.Errorf("config: read_buffer_size must be positive, got %d", c.ReadBufferSize)
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaultWriteBufferSize
	}
	if c.WriteBufferSize < 0 {
		return errors.Errorf("config: write_buffer_size must be positive, got %d", c.WriteBufferSize)
	}
	if c.TickInterval == 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.TickInterval < 0 {
		return errors.Errorf("config: tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.AcceptRateLimit < 0 {
		return errors.Errorf("config: accept_rate_limit must not be negative, got %v", c.AcceptRateLimit)
	}
	if c.AcceptRateLimit > 0 && c.AcceptBurst == 0 {
		c.AcceptBurst = int(c.AcceptRateLimit)
		if c.AcceptBurst == 0 {
			c.AcceptBurst = 1
		}
	}
	if c.AcceptBurst < 0 {
		return errors.Errorf("config: accept_burst must not be negative, got %d", c.AcceptBurst)
	}
	return nil
}

// Limiter builds the *rate.Limiter reactor.Selector.Accept consults, or
// nil when AcceptRateLimit is unset — the same "nil means disabled"
// convention reactor.Config.Limiter already follows.
func (c *Config) Limiter() *rate.Limiter {
	if c.AcceptRateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.AcceptRateLimit), c.AcceptBurst)
}

// Metrics builds the reactor.Metrics reporter named by MetricsPath, or
// nil when unset.
func (c *Config) Metrics() *reactor.Metrics {
	if c.MetricsPath == "" {
		return nil
	}
	return reactor.NewMetrics(c.MetricsPath)
}

package mixer

import (
	"net"
	"sync"
)

const (
	// DefaultHost is used when the configured host is empty.
	DefaultHost = "localhost"
	// DefaultPort is the mixer's default web controller port.
	DefaultPort = "8088"
)

// ConnectionConfig addresses the mixer's web API.
type ConnectionConfig struct {
	Host   string `json:"host"`
	Port   string `json:"port"`
	Secure bool   `json:"secure"`
}

// DefaultConnection returns localhost:8088 over plain HTTP.
func DefaultConnection() ConnectionConfig {
	return ConnectionConfig{Host: DefaultHost, Port: DefaultPort}
}

// BaseURL returns scheme://host:port. Empty host or port fall back to the
// defaults.
func (c ConnectionConfig) BaseURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == "" {
		port = DefaultPort
	}
	return scheme + "://" + net.JoinHostPort(host, port)
}

// ConnectionUpdate is a partial edit; nil fields are left unchanged.
type ConnectionUpdate struct {
	Host   *string `json:"host"`
	Port   *string `json:"port"`
	Secure *bool   `json:"secure"`
}

// Connection holds the operator-editable ConnectionConfig shared by polling
// and commands.
type Connection struct {
	mu  sync.RWMutex
	cfg ConnectionConfig
}

// NewConnection returns a Connection starting at cfg.
func NewConnection(cfg ConnectionConfig) *Connection {
	return &Connection{cfg: cfg}
}

// Get returns the current config.
func (c *Connection) Get() ConnectionConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// BaseURL resolves the current base address.
func (c *Connection) BaseURL() string {
	return c.Get().BaseURL()
}

// Apply merges u into the config and reports whether the base address changed.
func (c *Connection) Apply(u ConnectionUpdate) (ConnectionConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.cfg.BaseURL()
	if u.Host != nil {
		c.cfg.Host = *u.Host
	}
	if u.Port != nil {
		c.cfg.Port = *u.Port
	}
	if u.Secure != nil {
		c.cfg.Secure = *u.Secure
	}
	return c.cfg, c.cfg.BaseURL() != before
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".magicscraper"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	// Host lookups are case-insensitive.
	for host, site := range cf.Sites {
		lower := strings.ToLower(host)
		if lower != host {
			delete(cf.Sites, host)
			cf.Sites[lower] = site
		}
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .magicscraper in the current directory
// 3. Look for .magicscraper in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ApplyFile copies every setting present in the file over c.
// Settings absent from the file are left untouched.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	c.Sites = cf

	if cf.BaseURL != "" {
		c.BaseURL = cf.BaseURL
	}
	if cf.Model != "" {
		c.Model = cf.Model
	}
	if cf.PricePerMillion != nil {
		c.PricePerMillion = *cf.PricePerMillion
	}
	if len(cf.Fields) > 0 {
		c.Fields = append([]string(nil), cf.Fields...)
	}
	if cf.MaxFollowPages != nil {
		c.MaxFollowPages = *cf.MaxFollowPages
	}
	if len(cf.ContactKeywords) > 0 {
		c.ContactKeywords = append([]string(nil), cf.ContactKeywords...)
	}
	if cf.Timeout != 0 {
		c.Timeout = cf.Timeout
	}
	if cf.LLMTimeout != 0 {
		c.LLMTimeout = cf.LLMTimeout
	}
	if cf.CrawlDelay != 0 {
		c.CrawlDelay = cf.CrawlDelay
	}
	if cf.UserAgent != "" {
		c.UserAgent = cf.UserAgent
	}
	if cf.MaxBodySize != 0 {
		c.MaxBodySize = cf.MaxBodySize
	}
	if cf.MaxContentChars != nil {
		c.MaxContentChars = *cf.MaxContentChars
	}
	if cf.RespectRobots != nil {
		c.RespectRobots = *cf.RespectRobots
	}
	if cf.RenderJS != nil {
		c.RenderJS = *cf.RenderJS
	}
	if cf.RenderWait != 0 {
		c.RenderWait = cf.RenderWait
	}
	if cf.Concurrency != 0 {
		c.Concurrency = cf.Concurrency
	}
	if cf.RequestsPerSecond != nil {
		c.RequestsPerSecond = *cf.RequestsPerSecond
	}
	if cf.Output != "" {
		c.OutputFile = cf.Output
	}
	if cf.Listen != "" {
		c.Listen = cf.Listen
	}
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Config is the optional config.json. Zero values mean "use the default";
// command-line flags override whatever is loaded here.
type Config struct {
	JobURL     string `json:"job_url"`
	ResultsURL string `json:"results_url"`
	UserAgent  string `json:"user_agent"`

	PollIntervalSecs    int    `json:"poll_interval_seconds"`
	PollCeilingSecs     int    `json:"poll_ceiling_seconds"`
	PageLoadTimeoutSecs int    `json:"page_load_timeout_seconds"`
	RequestTimeoutSecs  int    `json:"request_timeout_seconds"`
	ParseMode           string `json:"parse_mode"`

	JobStore     string `json:"job_store"`
	JobStorePath string `json:"job_store_path"`
	ResultsDir   string `json:"results_dir"`

	LogFile  string `json:"log_file"`
	LogLevel string `json:"log_level"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		UserAgent:           "netmhc/1.0",
		PollIntervalSecs:    5,
		PollCeilingSecs:     500 * 60,
		PageLoadTimeoutSecs: 200,
		RequestTimeoutSecs:  30,
		ParseMode:           "strict",
		JobStore:            "sqlite",
		JobStorePath:        "netmhc_jobs.db",
		ResultsDir:          "results",
		LogLevel:            "info",
	}
}

// LoadConfig loads a JSON config from the given path. If path is empty, looks
// for ./config.json. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}
	c := Defaults()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return &c, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Sanitize()
	return &c, nil
}

// Sanitize replaces non-positive durations and empty names with defaults.
func (c *Config) Sanitize() {
	d := Defaults()
	if c.PollIntervalSecs <= 0 {
		c.PollIntervalSecs = d.PollIntervalSecs
	}
	if c.PollCeilingSecs <= 0 {
		c.PollCeilingSecs = d.PollCeilingSecs
	}
	if c.PageLoadTimeoutSecs <= 0 {
		c.PageLoadTimeoutSecs = d.PageLoadTimeoutSecs
	}
	if c.RequestTimeoutSecs <= 0 {
		c.RequestTimeoutSecs = d.RequestTimeoutSecs
	}
	if c.ParseMode == "" {
		c.ParseMode = d.ParseMode
	}
	if c.JobStore == "" {
		c.JobStore = d.JobStore
	}
	if c.JobStorePath == "" {
		c.JobStorePath = d.JobStorePath
	}
	if c.ResultsDir == "" {
		c.ResultsDir = d.ResultsDir
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

func (c *Config) PollCeiling() time.Duration {
	return time.Duration(c.PollCeilingSecs) * time.Second
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSecs) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

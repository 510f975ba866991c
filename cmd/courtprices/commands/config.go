package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"courtprices/internal/acquire"
	"courtprices/internal/components/chrono"
	"courtprices/internal/extract"
	"courtprices/internal/history"
	"courtprices/internal/venue"
	"courtprices/lib/configutil"
)

const ConfigName = "courtprices.json5"

const (
	DefaultCourtsPath      = "courts.yaml"
	DefaultHistoryFile     = ".courtprices/history.db"
	DefaultTimezone        = "Europe/Warsaw"
	DefaultSchedule        = "0 6 * * 1"
	DefaultPromptLimit     = extract.DefaultPromptLimit
	DefaultDumpDir         = ".dev/http"
	DefaultNavigateTimeout = "30s"
	DefaultSettle          = "2s"
	DefaultPricingIdle     = "5s"
	DefaultToggleIdle      = "3s"
)

type AcquireConfig struct {
	// Strategy is either "browser" or "static".
	Strategy          string   `json:"strategy"`
	NavigateTimeout   string   `json:"navigate_timeout"`
	Settle            string   `json:"settle"`
	PricingIdle       string   `json:"pricing_idle"`
	ToggleIdle        string   `json:"toggle_idle"`
	ChromePath        string   `json:"chrome_path"`
	UserAgent         string   `json:"user_agent"`
	ExtraKeywords     []string `json:"extra_keywords"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	Impersonate       bool     `json:"impersonate"`
}

type LLMConfig struct {
	AnthropicBaseURL string `json:"anthropic_base_url"`
	OpenAIBaseURL    string `json:"openai_base_url"`
	MaxTokens        int    `json:"max_tokens"`
	// Timeout bounds one completion, empty or "0" waits indefinitely.
	Timeout string `json:"timeout"`
}

type SeasonConfig struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Config struct {
	CourtsPath  string         `json:"courts_path"`
	History     history.Config `json:"history"`
	Timezone    string         `json:"timezone"`
	Schedule    string         `json:"schedule"`
	PromptLimit int            `json:"prompt_limit"`
	DumpDir     string         `json:"dump_dir"`
	Season      SeasonConfig   `json:"season"`
	Acquire     AcquireConfig  `json:"acquire"`
	LLM         LLMConfig      `json:"llm"`
}

func (c *Config) applyDefaults() {
	if c.CourtsPath == "" {
		c.CourtsPath = DefaultCourtsPath
	}
	if c.History.File == "" && c.History.Url == "" {
		c.History.File = DefaultHistoryFile
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.PromptLimit == 0 {
		c.PromptLimit = DefaultPromptLimit
	}
	if c.DumpDir == "" {
		c.DumpDir = DefaultDumpDir
	}
	if c.Season.From == "" {
		c.Season.From = string(extract.DefaultSeason.From)
	}
	if c.Season.To == "" {
		c.Season.To = string(extract.DefaultSeason.To)
	}

	a := &c.Acquire
	if a.Strategy == "" {
		a.Strategy = acquire.StrategyBrowser
	}
	if a.NavigateTimeout == "" {
		a.NavigateTimeout = DefaultNavigateTimeout
	}
	if a.Settle == "" {
		a.Settle = DefaultSettle
	}
	if a.PricingIdle == "" {
		a.PricingIdle = DefaultPricingIdle
	}
	if a.ToggleIdle == "" {
		a.ToggleIdle = DefaultToggleIdle
	}
}

// resolvePaths makes relative paths relative to the directory of the config file.
func (c *Config) resolvePaths(dir string) {
	if dir == "" {
		return
	}
	resolve := func(p *string) {
		if *p != "" && *p != ":memory:" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	resolve(&c.CourtsPath)
	resolve(&c.History.File)
	resolve(&c.DumpDir)
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", field)
	}
	return d, nil
}

func validDate(d string) bool {
	_, err := time.Parse("2006-01-02", d)
	return err == nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CourtsPath) == "" {
		errs = append(errs, errors.New("courts_path is required"))
	}
	if c.PromptLimit < 1 {
		errs = append(errs, errors.New("prompt_limit must be >= 1"))
	}
	if c.LLM.MaxTokens < 0 {
		errs = append(errs, errors.New("llm.max_tokens must be >= 0"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := chrono.ValidateSpec(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if !validDate(c.Season.From) || !validDate(c.Season.To) {
		errs = append(errs, errors.New("season.from and season.to must be YYYY-MM-DD"))
	} else if c.Season.From > c.Season.To {
		errs = append(errs, errors.New("season.from must not be after season.to"))
	}

	switch c.Acquire.Strategy {
	case acquire.StrategyBrowser, acquire.StrategyStatic:
	default:
		errs = append(errs, fmt.Errorf("acquire.strategy must be %q or %q", acquire.StrategyBrowser, acquire.StrategyStatic))
	}
	if c.Acquire.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("acquire.requests_per_second must be >= 0"))
	}
	durations := []struct{ field, value string }{
		{"acquire.navigate_timeout", c.Acquire.NavigateTimeout},
		{"acquire.settle", c.Acquire.Settle},
		{"acquire.pricing_idle", c.Acquire.PricingIdle},
		{"acquire.toggle_idle", c.Acquire.ToggleIdle},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.field, d.value); err != nil {
			errs = append(errs, err)
		}
	}
	if c.LLM.Timeout != "" {
		if d, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("llm.timeout: %w", err))
		} else if d < 0 {
			errs = append(errs, errors.New("llm.timeout must be >= 0"))
		}
	}
	return errors.Join(errs...)
}

// AcquireOptions converts the acquisition settings, the config must be valid.
func (c Config) AcquireOptions() acquire.Options {
	duration := func(v string) time.Duration {
		d, _ := time.ParseDuration(v)
		return d
	}
	a := c.Acquire
	return acquire.Options{
		NavigateTimeout:   duration(a.NavigateTimeout),
		Settle:            duration(a.Settle),
		PricingIdle:       duration(a.PricingIdle),
		ToggleIdle:        duration(a.ToggleIdle),
		ChromePath:        a.ChromePath,
		UserAgent:         a.UserAgent,
		Keywords:          acquire.DefaultKeywords.WithToggles(a.ExtraKeywords...),
		RequestsPerSecond: a.RequestsPerSecond,
		Impersonate:       a.Impersonate,
	}
}

func (c Config) ExtractOptions() extract.Options {
	return extract.Options{
		PromptLimit: c.PromptLimit,
		Season: extract.Season{
			From: venue.Date(c.Season.From),
			To:   venue.Date(c.Season.To),
		},
	}
}

// LLMTimeout is zero when completions are not bounded.
func (c Config) LLMTimeout() time.Duration {
	if c.LLM.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.LLM.Timeout)
	return d
}

// LoadConfig reads the config file at path, or looks for courtprices.json5 from the
// working directory upwards when path is empty. Without any config file the defaults
// are used.
func LoadConfig(path string) (Config, error) {
	var (
		out Config
		dir string
		err error
	)
	if path != "" {
		out, err = configutil.ReadConfig[Config](path)
		dir = filepath.Dir(path)
	} else {
		out, dir, err = configutil.ReadRecursively[Config](ConfigName)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
			dir = ""
		}
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	out.applyDefaults()
	out.resolvePaths(dir)
	return out, nil
}

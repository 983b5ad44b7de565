// Package config provides configuration for the smoke runner.
// It loads configuration from CLI flags and environment variables, validates
// every field and reports all problems at once.
//
// CLI flags select targets and which services are mocked (--no-email, --no-s3, --test).
// Environment variables provide secrets and service configuration.
package config

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/inventory-smoke/internal/browser"
	"github.com/kuitang/inventory-smoke/internal/notify"
	"github.com/kuitang/inventory-smoke/internal/smoke"
	"github.com/kuitang/inventory-smoke/internal/urlutil"
)

const (
	defaultArtifactDir  = "."
	defaultTigrisRegion = "auto"
)

// Config holds all runner configuration.
type Config struct {
	// Targets
	FrontendURL string
	BackendURL  string
	APIPath     string

	// Run selection and output
	ArtifactDir string
	RunFilter   string // regexp over case names, empty runs all
	WriteReport bool

	// Browser
	Browser         string
	Headless        bool
	ViewportWidth   int
	ViewportHeight  int
	InstallBrowsers bool

	// Waits
	ImplicitWait  time.Duration
	SettleTimeout time.Duration
	PollInterval  time.Duration

	// Mock service flags (controlled by CLI flags, not env vars)
	NoEmail bool // If true, notifications go to the mock outbox (--no-email)
	NoS3    bool // If true, artifacts stay local (--no-s3)

	// Resend Email
	ResendAPIKey    string
	ResendFromEmail string
	NotifyTo        []string
	NotifyOn        string

	// S3/Tigris artifact upload (uses AWS_ env vars, set automatically by `fly storage create`)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPublicURL       string // S3_PUBLIC_URL (custom, not set by Tigris)
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Flags are the parsed command line values. Empty strings and nil pointers
// mean "not given" and fall back to the environment.
type Flags struct {
	Frontend    string
	Backend     string
	APIPath     string
	ArtifactDir string
	Run         string
	Browser     string
	Headless    *bool
	Report      bool
	NoEmail     bool
	NoS3        bool
}

// ParseFlags parses os.Args. Call before LoadConfig.
func ParseFlags() Flags {
	// flag.CommandLine exits with status 2 on a bad flag.
	f, _ := parseFlags(flag.CommandLine, os.Args[1:])
	return f
}

func parseFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	var testMode, headless bool
	fs.StringVar(&f.Frontend, "frontend", "", "Front-end base URL (overrides FRONTEND_URL, default "+smoke.DefaultFrontendURL+")")
	fs.StringVar(&f.Backend, "backend", "", "Back-end base URL (overrides BACKEND_URL, default "+smoke.DefaultBackendURL+")")
	fs.StringVar(&f.APIPath, "api-path", "", "API path probed under the back end (overrides API_PATH, default "+smoke.DefaultAPIPath+")")
	fs.StringVar(&f.ArtifactDir, "artifacts", "", "Directory for screenshots and reports (overrides ARTIFACT_DIR)")
	fs.StringVar(&f.Run, "run", "", "Only run cases whose name matches this regexp")
	fs.StringVar(&f.Browser, "browser", "", "Browser engine: chromium, firefox or webkit (overrides BROWSER)")
	fs.BoolVar(&headless, "headless", true, "Run the browser without a window (overrides HEADLESS)")
	fs.BoolVar(&f.Report, "report", true, "Write report.md and report.html next to the screenshots")
	fs.BoolVar(&f.NoEmail, "no-email", false, "Use mock notifier (writes emails to MOCK_EMAIL_OUTBOX_DIR)")
	fs.BoolVar(&f.NoS3, "no-s3", false, "Keep artifacts local even when BUCKET_NAME is set")
	fs.BoolVar(&testMode, "test", false, "Shorthand for --no-email --no-s3")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "headless" {
			f.Headless = &headless
		}
	})
	if testMode {
		f.NoEmail = true
		f.NoS3 = true
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables and CLI flag values.
// Flags win over the environment.
func LoadConfig(f Flags) (*Config, error) {
	cfg := &Config{}

	// CLI flag values
	cfg.NoEmail = f.NoEmail
	cfg.NoS3 = f.NoS3
	cfg.WriteReport = f.Report
	cfg.RunFilter = strings.TrimSpace(f.Run)

	// Targets
	cfg.FrontendURL = firstNonEmpty(f.Frontend, getEnvOrDefault("FRONTEND_URL", smoke.DefaultFrontendURL))
	cfg.BackendURL = firstNonEmpty(f.Backend, getEnvOrDefault("BACKEND_URL", smoke.DefaultBackendURL))
	cfg.APIPath = firstNonEmpty(f.APIPath, getEnvOrDefault("API_PATH", smoke.DefaultAPIPath))
	cfg.ArtifactDir = firstNonEmpty(f.ArtifactDir, getEnvOrDefault("ARTIFACT_DIR", defaultArtifactDir))

	// Browser
	cfg.Browser = strings.ToLower(firstNonEmpty(f.Browser, getEnvOrDefault("BROWSER", browser.Chromium)))
	cfg.Headless = parseBoolOrDefault("HEADLESS", true)
	if f.Headless != nil {
		cfg.Headless = *f.Headless
	}
	cfg.ViewportWidth = parseIntOrDefault("VIEWPORT_WIDTH", 1920)
	cfg.ViewportHeight = parseIntOrDefault("VIEWPORT_HEIGHT", 1080)
	cfg.InstallBrowsers = parseBoolOrDefault("PLAYWRIGHT_INSTALL", false)

	// Waits
	cfg.ImplicitWait = parseDurationOrDefault("IMPLICIT_WAIT", browser.DefaultImplicitWait)
	cfg.SettleTimeout = parseDurationOrDefault("SETTLE_TIMEOUT", smoke.DefaultSettleTimeout)
	cfg.PollInterval = parseDurationOrDefault("POLL_INTERVAL", browser.DefaultPollInterval)

	// Resend Email
	cfg.ResendAPIKey = getEnvOrDefault("RESEND_API_KEY", "")
	cfg.ResendFromEmail = getEnvOrDefault("RESEND_FROM_EMAIL", "smoke@inventory.local")
	cfg.NotifyTo = splitList(os.Getenv("NOTIFY_TO"))
	cfg.NotifyOn = strings.ToLower(getEnvOrDefault("NOTIFY_ON", notify.PolicyFailure))

	// S3/Tigris Storage (AWS_ env vars set automatically by `fly storage create`)
	cfg.AWSEndpointS3 = getEnvOrDefault("AWS_ENDPOINT_URL_S3", "")
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultTigrisRegion)
	cfg.AWSAccessKeyID = getEnvOrDefault("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "")
	cfg.AWSBucketName = getEnvOrDefault("BUCKET_NAME", "")
	cfg.AWSPublicURL = getEnvOrDefault("S3_PUBLIC_URL", "")
	if cfg.AWSPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.AWSBucketName != "" {
		cfg.AWSPublicURL = urlutil.BuildAbsolute(cfg.AWSEndpointS3, cfg.AWSBucketName)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all configuration is present and valid.
// When a real service is in use, its settings are required.
func (c *Config) Validate() error {
	var errs []string

	for _, target := range []struct{ name, value string }{
		{"FRONTEND_URL", c.FrontendURL},
		{"BACKEND_URL", c.BackendURL},
	} {
		if err := checkHTTPURL(target.value); err != nil {
			errs = append(errs, fmt.Sprintf("%s %s", target.name, err))
		}
	}
	if strings.Contains(c.APIPath, "://") {
		errs = append(errs, "API_PATH must be a path, not a URL")
	}

	if c.RunFilter != "" {
		if _, err := regexp.Compile(c.RunFilter); err != nil {
			errs = append(errs, fmt.Sprintf("-run is not a valid regexp: %v", err))
		}
	}

	switch c.Browser {
	case browser.Chromium, browser.Firefox, browser.WebKit:
	default:
		errs = append(errs, fmt.Sprintf("BROWSER must be chromium, firefox or webkit (got %q)", c.Browser))
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		errs = append(errs, "VIEWPORT_WIDTH and VIEWPORT_HEIGHT must be positive")
	}

	if c.ImplicitWait <= 0 {
		errs = append(errs, "IMPLICIT_WAIT must be positive")
	}
	if c.SettleTimeout <= 0 {
		errs = append(errs, "SETTLE_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		errs = append(errs, "POLL_INTERVAL must be positive")
	}

	// Email: require Resend API key when notifying for real
	switch c.NotifyOn {
	case notify.PolicyFailure, notify.PolicyAlways, notify.PolicyNever:
	default:
		errs = append(errs, fmt.Sprintf("NOTIFY_ON must be failure, always or never (got %q)", c.NotifyOn))
	}
	for _, to := range c.NotifyTo {
		if !strings.Contains(to, "@") {
			errs = append(errs, fmt.Sprintf("NOTIFY_TO entry %q is not an email address", to))
		}
	}
	if c.NotificationsEnabled() && !c.NoEmail && c.ResendAPIKey == "" {
		errs = append(errs, "RESEND_API_KEY is required when NOTIFY_TO is set (set env var or use --no-email)")
	}

	// S3/Tigris: credentials come in pairs when uploading
	if c.UploadEnabled() {
		if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
			errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together (or use --no-s3)")
		}
		if c.AWSEndpointS3 != "" {
			if err := checkHTTPURL(c.AWSEndpointS3); err != nil {
				errs = append(errs, "AWS_ENDPOINT_URL_S3 "+err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// UploadEnabled reports whether artifacts are mirrored to S3.
func (c *Config) UploadEnabled() bool {
	return !c.NoS3 && c.AWSBucketName != ""
}

// NotificationsEnabled reports whether a run summary is sent at all.
func (c *Config) NotificationsEnabled() bool {
	return len(c.NotifyTo) > 0 && c.NotifyOn != notify.PolicyNever
}

// Filter compiles RunFilter, or returns nil when every case runs.
func (c *Config) Filter() *regexp.Regexp {
	if c.RunFilter == "" {
		return nil
	}
	// Validate already rejected patterns that do not compile.
	return regexp.MustCompile(c.RunFilter)
}

// LaunchOptions returns the browser launch settings.
func (c *Config) LaunchOptions() browser.LaunchOptions {
	return browser.LaunchOptions{
		Browser:         c.Browser,
		Headless:        c.Headless,
		ViewportWidth:   c.ViewportWidth,
		ViewportHeight:  c.ViewportHeight,
		ImplicitWait:    c.ImplicitWait,
		InstallBrowsers: c.InstallBrowsers,
	}
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	c.printStartupSummary(os.Stderr)
}

func (c *Config) printStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "inventory smoke run starting...")

	fmt.Fprintf(w, "  Frontend: %s\n", c.FrontendURL)
	fmt.Fprintf(w, "  Backend:  %s (probe %s)\n", c.BackendURL, c.APIPath)

	mode := "headless"
	if !c.Headless {
		mode = "headed"
	}
	fmt.Fprintf(w, "  Browser:  %s, %s, %dx%d\n", c.Browser, mode, c.ViewportWidth, c.ViewportHeight)
	fmt.Fprintf(w, "  Waits:    implicit %s, settle %s\n", c.ImplicitWait, c.SettleTimeout)

	// Storage
	switch {
	case c.UploadEnabled():
		fmt.Fprintf(w, "  Storage:  %s + S3 bucket %s\n", c.ArtifactDir, c.AWSBucketName)
	case c.NoS3:
		fmt.Fprintf(w, "  Storage:  %s (--no-s3)\n", c.ArtifactDir)
	default:
		fmt.Fprintf(w, "  Storage:  %s\n", c.ArtifactDir)
	}

	// Email
	switch {
	case !c.NotificationsEnabled():
		fmt.Fprintln(w, "  Email:    off")
	case c.NoEmail:
		fmt.Fprintf(w, "  Email:    Mock (--no-email), on %s\n", c.NotifyOn)
	default:
		fmt.Fprintf(w, "  Email:    Resend (real, from: %s), on %s\n", c.ResendFromEmail, c.NotifyOn)
	}

	if c.RunFilter != "" {
		fmt.Fprintf(w, "  Filter:   %s\n", c.RunFilter)
	}
	fmt.Fprintln(w, "")
}

// Helper functions for parsing environment variables

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL (got %q)", raw)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

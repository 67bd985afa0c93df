package config

import (
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/magicscraper/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "magicscraper"

	// DefaultBaseURL is the OpenAI-compatible endpoint of Groq.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the LLM used for field extraction.
	DefaultModel = "qwen-qwq-32b"

	// DefaultPricePerMillion is the output-token price of DefaultModel in USD.
	DefaultPricePerMillion = 0.39

	// DefaultMaxFollowPages is the number of internal links considered
	// after the homepage.
	DefaultMaxFollowPages = 5

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultLLMTimeout bounds a single extraction call. Reasoning models
	// can take a while to answer.
	DefaultLLMTimeout = 120 * time.Second

	// DefaultCrawlDelay is the pause between two fetches of the same run.
	DefaultCrawlDelay = 0

	// DefaultUserAgent is sent with every page request.
	DefaultUserAgent = "Mozilla/5.0 (compatible; MagicScraper/1.0; +https://github.com/nao1215/magicscraper)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultMaxContentChars limits the page content sent to the LLM.
	DefaultMaxContentChars = 20000

	// DefaultRenderWait is how long a headless browser lets a page settle.
	DefaultRenderWait = 2 * time.Second

	// DefaultConcurrency processes one URL at a time.
	DefaultConcurrency = 1

	// DefaultOutputFile is the name of the results table.
	DefaultOutputFile = "company_info.csv"

	// DefaultListen is the address of the web interface.
	DefaultListen = "127.0.0.1:8501"

	// DefaultEnvFile is read for GROQ_API_KEY before the environment is consulted.
	DefaultEnvFile = ".env"
)

// DefaultContactKeywords mark links that are followed before all others.
var DefaultContactKeywords = []string{"contact", "contatti", "contattaci"}

// fieldNamePattern is the accepted shape of a field name. Field names end up
// as JSON keys in the prompt and as CSV column headers.
var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Config holds every option of a run.
// It is built from defaults, then the configuration file, then CLI flags,
// and passed down explicitly.
type Config struct {
	// APIKey authenticates against the LLM endpoint.
	APIKey string

	// BaseURL is the OpenAI-compatible API root.
	BaseURL string

	// Model is the LLM used for extraction.
	Model string

	// PricePerMillion is the price in USD per one million tokens, used for
	// the cost estimate only.
	PricePerMillion float64

	// Fields are the field names to extract, in output order.
	Fields []string

	// MaxFollowPages is the number of internal links considered after the
	// homepage. Zero disables link following.
	MaxFollowPages int

	// ContactKeywords are the URL substrings that move a link to the front.
	ContactKeywords []string

	// Timeout bounds a single page fetch.
	Timeout time.Duration

	// LLMTimeout bounds a single extraction call.
	LLMTimeout time.Duration

	// CrawlDelay is the pause between two fetches.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header of page requests.
	UserAgent string

	// MaxBodySize limits how much of a response body is read.
	MaxBodySize int64

	// MaxContentChars limits the page content sent to the LLM.
	// Zero sends everything.
	MaxContentChars int

	// RespectRobots makes the fetcher honour robots.txt.
	RespectRobots bool

	// RenderJS loads pages in headless Chrome instead of plain HTTP.
	RenderJS bool

	// RenderWait is how long the browser lets a page settle.
	RenderWait time.Duration

	// Concurrency is the number of URLs processed at the same time.
	Concurrency int

	// RequestsPerSecond caps LLM calls. Zero means unlimited.
	RequestsPerSecond float64

	// InputFile is the CSV table with a url column.
	InputFile string

	// OutputFile is the results table path.
	OutputFile string

	// JSONReport and MarkdownReport select the summary format.
	// They are mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the summary instead of stdout when set.
	ReportFile string

	// Listen is the address of the web interface.
	Listen string

	// Verbose lowers the log level to Debug.
	Verbose bool

	// LogJSON switches logs to JSON lines.
	LogJSON bool

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string

	// EnvFile is the dotenv file read for the API key.
	EnvFile string

	// Sites holds per-site request settings from the configuration file.
	Sites *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		Model:           DefaultModel,
		PricePerMillion: DefaultPricePerMillion,
		Fields:          append([]string(nil), model.DefaultFields...),
		MaxFollowPages:  DefaultMaxFollowPages,
		ContactKeywords: append([]string(nil), DefaultContactKeywords...),
		Timeout:         DefaultTimeout,
		LLMTimeout:      DefaultLLMTimeout,
		CrawlDelay:      DefaultCrawlDelay,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		MaxContentChars: DefaultMaxContentChars,
		RenderWait:      DefaultRenderWait,
		Concurrency:     DefaultConcurrency,
		OutputFile:      DefaultOutputFile,
		Listen:          DefaultListen,
		EnvFile:         DefaultEnvFile,
		Sites:           &File{Sites: make(map[string]SiteConfig)},
	}
}

// XDGConfigDir returns the XDG config directory for magicscraper.
// On Linux: ~/.config/magicscraper
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir returns the XDG data directory for magicscraper.
// Results written by the web interface go there.
// On Linux: ~/.local/share/magicscraper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ValidFieldName reports whether name can be used as a field.
func ValidFieldName(name string) bool {
	return fieldNamePattern.MatchString(name)
}

// ValidateFields checks a field selection.
func ValidateFields(fields []string) error {
	if len(fields) == 0 {
		return ErrNoFields
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !ValidFieldName(f) {
			return &FieldError{Field: f, Err: ErrInvalidField}
		}
		if seen[f] {
			return &FieldError{Field: f, Err: ErrDuplicateField}
		}
		seen[f] = true
	}
	return nil
}

// Validate checks the options shared by every command.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Model == "" {
		return ErrNoModel
	}
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if err := ValidateFields(c.Fields); err != nil {
		return err
	}
	if c.Timeout <= 0 || c.LLMTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxFollowPages < 0 {
		return ErrInvalidMaxFollowPages
	}
	if c.PricePerMillion < 0 {
		return ErrInvalidPrice
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.CrawlDelay < 0 || c.RenderWait < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxContentChars < 0 {
		return ErrInvalidMaxContentChars
	}
	return nil
}

// ValidateRun checks the options of a batch run from the command line.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.InputFile == "" {
		return ErrNoInput
	}
	if c.OutputFile == "" {
		return ErrNoOutput
	}
	return c.RequireAPIKey()
}

// RequireAPIKey returns ErrMissingAPIKey when no API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Database     Database     `yaml:"database"`
	LLM          LLM          `yaml:"llm"`
	Instructions Instructions `yaml:"instructions"`

	Port    string `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// Database holds connection parameters. For sqlite, Name is the file path.
type Database struct {
	Driver       string        `yaml:"driver"`
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Name         string        `yaml:"name"`
	SSLMode      string        `yaml:"sslmode"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type LLM struct {
	Provider   string        `yaml:"provider"`
	Endpoint   string        `yaml:"endpoint,omitempty"`
	APIKey     string        `yaml:"api_key"`
	Deployment string        `yaml:"deployment,omitempty"`
	APIVersion string        `yaml:"api_version,omitempty"`
	Model      string        `yaml:"model,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Instructions are the fixed system prompts for each stage, read from the
// configuration document.
type Instructions struct {
	Agent    string `yaml:"agent"`
	Analysis string `yaml:"analysis"`
	Metrics  string `yaml:"metrics"`
	Render   string `yaml:"render"`
	// VisualizationTypes is the catalog appended to the analysis prompt,
	// kept as the JSON the document declared.
	VisualizationTypes json.RawMessage `yaml:"-"`
}

// Options locate the configuration inputs. An empty EnvFile means ".env",
// which is optional; an explicit EnvFile must exist.
type Options struct {
	Document string
	EnvFile  string
}

// Load reads the environment and the instruction document. Any missing
// instruction, unreadable document or missing database parameter is an error.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", opts.EnvFile, err)
		}
	} else {
		// .env is optional: env vars may already be set (e.g. in production)
		_ = godotenv.Load()
	}

	if opts.Document == "" {
		opts.Document = "config.json"
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigFile(opts.Document)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config document %s: %w", opts.Document, err)
	}

	cfg := &Config{
		Database: Database{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			QueryTimeout: v.GetDuration("QUERY_TIMEOUT"),
		},
		LLM:     loadLLM(v),
		Port:    v.GetString("PORT"),
		DataDir: v.GetString("DATA_DIR"),
	}

	instr, err := loadInstructions(v)
	if err != nil {
		return nil, err
	}
	cfg.Instructions = instr

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("QUERY_TIMEOUT", "30s")
	v.SetDefault("LLM_TIMEOUT", "60s")
	v.SetDefault("AZURE_OPENAI_DEPLOYMENT", "gpt-4")
	v.SetDefault("AZURE_OPENAI_API_VERSION", "2024-02-15-preview")
	v.SetDefault("OPENAI_MODEL", "gpt-4.1-mini")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("PORT", "8000")
	v.SetDefault("DATA_DIR", ".")
}

func loadLLM(v *viper.Viper) LLM {
	provider := strings.ToLower(v.GetString("LLM_PROVIDER"))
	if provider == "" {
		switch {
		case v.GetString("AZURE_OPENAI_ENDPOINT") != "":
			provider = ProviderAzure
		case v.GetString("OPENAI_API_KEY") != "":
			provider = ProviderOpenAI
		case v.GetString("GEMINI_API_KEY") != "":
			provider = ProviderGemini
		}
	}

	l := LLM{Provider: provider, Timeout: v.GetDuration("LLM_TIMEOUT")}
	switch provider {
	case ProviderAzure:
		l.Endpoint = strings.TrimRight(v.GetString("AZURE_OPENAI_ENDPOINT"), "/")
		l.APIKey = v.GetString("AZURE_OPENAI_API_KEY")
		l.Deployment = v.GetString("AZURE_OPENAI_DEPLOYMENT")
		l.APIVersion = v.GetString("AZURE_OPENAI_API_VERSION")
	case ProviderOpenAI:
		l.APIKey = v.GetString("OPENAI_API_KEY")
		l.Model = v.GetString("OPENAI_MODEL")
		l.BaseURL = strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/")
	case ProviderGemini:
		l.APIKey = v.GetString("GEMINI_API_KEY")
		l.Model = v.GetString("GEMINI_MODEL")
	}
	return l
}

func loadInstructions(v *viper.Viper) (Instructions, error) {
	instr := Instructions{
		Agent:    v.GetString("INSTRUCTIONS"),
		Analysis: v.GetString("INSTRUCTIONS_DB_ANALYSIS_AND_SQL"),
		Metrics:  v.GetString("INSTRUCTIONS_SQL_METRIC_DATA_JSON_ONLY"),
		Render:   v.GetString("INSTRUCTIONS_RENDER_DASHBOARD_FROM_DATA"),
	}

	for _, req := range []struct {
		name, val string
	}{
		{"INSTRUCTIONS", instr.Agent},
		{"INSTRUCTIONS_DB_ANALYSIS_AND_SQL", instr.Analysis},
		{"INSTRUCTIONS_SQL_METRIC_DATA_JSON_ONLY", instr.Metrics},
		{"INSTRUCTIONS_RENDER_DASHBOARD_FROM_DATA", instr.Render},
	} {
		if strings.TrimSpace(req.val) == "" {
			return Instructions{}, fmt.Errorf("config document: %s is missing or empty", req.name)
		}
	}

	types := v.Get("VISUALIZATION_TYPES_JSON")
	if types == nil {
		return Instructions{}, errors.New("config document: VISUALIZATION_TYPES_JSON is missing")
	}
	raw, err := json.Marshal(types)
	if err != nil {
		return Instructions{}, fmt.Errorf("config document: encoding VISUALIZATION_TYPES_JSON: %w", err)
	}
	instr.VisualizationTypes = raw
	return instr, nil
}

// Validate checks that every parameter the driver needs is present.
func (d Database) Validate() error {
	var required []struct{ name, val string }
	switch d.Driver {
	case DriverPostgres:
		required = []struct{ name, val string }{
			{"DB_HOST", d.Host},
			{"DB_USER", d.User},
			{"DB_PASSWORD", d.Password},
			{"DB_NAME", d.Name},
		}
	case DriverSQLite:
		required = []struct{ name, val string }{{"DB_NAME", d.Name}}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", d.Driver)
	}

	for _, req := range required {
		if req.val == "" {
			return fmt.Errorf("required env var %s is not set", req.name)
		}
	}
	return nil
}

// DSN returns the data source name for database/sql. SQLite files are opened
// read-only, so writes fail even after an embedded COMMIT.
func (d Database) DSN() string {
	if d.Driver == DriverSQLite {
		return sqliteDSN(d.Name)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// sqliteDSN turns a file name into a read-only URI. Options already present
// on the name are kept.
func sqliteDSN(name string) string {
	path, query, _ := strings.Cut(strings.TrimPrefix(name, "file:"), "?")
	params := "mode=ro&_pragma=query_only(1)"
	if query != "" {
		params = query + "&" + params
	}
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + params
}

// Validate checks that the selected provider has its credentials.
func (l LLM) Validate() error {
	var required []struct{ name, val string }
	switch l.Provider {
	case ProviderAzure:
		required = []struct{ name, val string }{
			{"AZURE_OPENAI_ENDPOINT", l.Endpoint},
			{"AZURE_OPENAI_API_KEY", l.APIKey},
		}
	case ProviderOpenAI:
		required = []struct{ name, val string }{{"OPENAI_API_KEY", l.APIKey}}
	case ProviderGemini:
		required = []struct{ name, val string }{{"GEMINI_API_KEY", l.APIKey}}
	case "":
		return errors.New("no LLM provider configured: set LLM_PROVIDER or provider credentials")
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", l.Provider)
	}

	for _, req := range required {
		if req.val == "" {
			return fmt.Errorf("required env var %s is not set", req.name)
		}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Database.Password != "" {
		c.Database.Password = "***"
	}
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = "***"
	}
	return c
}

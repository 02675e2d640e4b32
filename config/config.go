package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`
	DBPath       string `json:"db_path"`

	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
	BackendURL  string `json:"backend_url"`
	MaxTokens   int    `json:"max_tokens"`

	// Research session bounds
	MaxToolsPerPlan     int `json:"max_tools_per_plan"`
	MaxDiscussionRounds int `json:"max_discussion_rounds"`
	MaxPlansInContext   int `json:"max_plans_in_context"`

	// Ingestion tuning
	SnapshotConcurrency int `json:"snapshot_concurrency"`
	BackfillConcurrency int `json:"backfill_concurrency"`
	FlushBatchSize      int `json:"flush_batch_size"`

	CacheEnabled bool `json:"cache_enabled"`
	Debug        bool `json:"debug"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// AI Model API Keys
	DeepSeekAPIKey string `json:"deepseek_api_key"`
	OpenAIAPIKey   string `json:"openai_api_key"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),
		DBPath:       filepath.Join(root, "data", "dexter.db"),

		LLMProvider: "deepseek",
		LLMModel:    "deepseek-chat",
		MaxTokens:   8192,

		MaxToolsPerPlan:     15,
		MaxDiscussionRounds: 2,
		MaxPlansInContext:   3,

		SnapshotConcurrency: 8,
		BackfillConcurrency: 3,
		FlushBatchSize:      50,

		CacheEnabled: true,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}

	if val := os.Getenv("MAX_TOOLS_PER_PLAN"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxToolsPerPlan = v
		}
	}
	if val := os.Getenv("MAX_DISCUSSION_ROUNDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxDiscussionRounds = v
		}
	}
	if val := os.Getenv("MAX_PLANS_IN_CONTEXT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxPlansInContext = v
		}
	}

	if val := os.Getenv("SNAPSHOT_CONCURRENCY"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.SnapshotConcurrency = v
		}
	}
	if val := os.Getenv("BACKFILL_CONCURRENCY"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.BackfillConcurrency = v
		}
	}
	if val := os.Getenv("FLUSH_BATCH_SIZE"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.FlushBatchSize = v
		}
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
	if val := os.Getenv("DEXTER_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.MaxToolsPerPlan <= 0 {
		return fmt.Errorf("max_tools_per_plan must be positive, got %d", c.MaxToolsPerPlan)
	}
	if c.MaxDiscussionRounds < 0 {
		return fmt.Errorf("max_discussion_rounds must not be negative, got %d", c.MaxDiscussionRounds)
	}
	if c.MaxPlansInContext <= 0 {
		return fmt.Errorf("max_plans_in_context must be positive, got %d", c.MaxPlansInContext)
	}
	switch c.LLMProvider {
	case "", "deepseek", "openai":
	default:
		return fmt.Errorf("unsupported llm_provider %q", c.LLMProvider)
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

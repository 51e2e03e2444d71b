package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int              `json:"port"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	QueryWindowMs int64            `json:"query_window_ms"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	Admin         AdminConfig      `json:"admin"`
	FileStore     FileStoreConfig  `json:"file_store"`
	AI            AIConfig         `json:"ai"`
	Embedding     EmbeddingConfig  `json:"embedding"`
	RAG           RAGConfig        `json:"rag"`
	Source        SourceConfig     `json:"source"`
	Jobs          JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// AdminConfig guards mutating routes. An empty JWTSecret leaves them open.
type AdminConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	PasswordHash  string `json:"password_hash"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Embed         []ProviderConfig `json:"embed"`
	Generate      []ProviderConfig `json:"generate"`
	Timeout       int              `json:"timeout"`
	RatePerSecond float64          `json:"rate_per_second"`
	Burst         int              `json:"burst"`
}

type EmbeddingConfig struct {
	BatchSize       int  `json:"batch_size"`
	MaxAttempts     int  `json:"max_attempts"`
	BackoffMs       *int `json:"backoff_ms"`
	AttemptTimeout  int  `json:"attempt_timeout"`
	LRUSize         int  `json:"lru_size"`
	LRUTTLMinutes   int  `json:"lru_ttl_minutes"`
	DBCache         bool `json:"db_cache"`
	CacheMaxAgeDays int  `json:"cache_max_age_days"`
}

type RAGConfig struct {
	ChunkSize           int     `json:"chunk_size"`
	ChunkOverlap        int     `json:"chunk_overlap"`
	TopK                int     `json:"top_k"`
	MaxTopK             int     `json:"max_top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	PreviewChars        int     `json:"preview_chars"`
}

type SourceConfig struct {
	Dir               string   `json:"dir"`
	Pattern           string   `json:"pattern"`
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxFileSize       int64    `json:"max_file_size"`
	Watch             bool     `json:"watch"`
	WatchDebounceMs   int      `json:"watch_debounce_ms"`
	Concurrency       int      `json:"concurrency"`
}

type JobsConfig struct {
	CacheCleanupCron string `json:"cache_cleanup_cron"`
	ReembedCron      string `json:"reembed_cron"`
	ReembedBatch     int    `json:"reembed_batch"`
	SourceSyncCron   string `json:"source_sync_cron"`
}

var DefaultAllowedExtensions = []string{".pdf", ".docx", ".txt", ".pptx", ".md", ".html"}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode reads JSON, or YAML when the file extension says so. YAML goes
// through a generic map so the json tags stay the single source of names.
func decode(path string, data []byte) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		buf, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		data = buf
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET")); secret != "" {
		cfg.Admin.JWTSecret = secret
	}
	googleKey := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	if googleKey != "" {
		if len(cfg.AI.Embed) == 0 {
			cfg.AI.Embed = []ProviderConfig{{Name: "gemini", Provider: "gemini", Model: "text-embedding-004"}}
		}
		if len(cfg.AI.Generate) == 0 {
			cfg.AI.Generate = []ProviderConfig{{Name: "gemini", Provider: "gemini", Model: "gemini-2.0-flash"}}
		}
		injectAPIKey(cfg.AI.Embed, "gemini", googleKey)
		injectAPIKey(cfg.AI.Generate, "gemini", googleKey)
	}
	if openaiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); openaiKey != "" {
		injectAPIKey(cfg.AI.Embed, "openai", openaiKey)
		injectAPIKey(cfg.AI.Generate, "openai", openaiKey)
	}
}

// injectAPIKey fills data.api_key for matching providers that do not carry one.
func injectAPIKey(items []ProviderConfig, provider, key string) {
	for i := range items {
		if !strings.EqualFold(strings.TrimSpace(items[i].Provider), provider) {
			continue
		}
		data, _ := items[i].Data.(map[string]interface{})
		if data == nil {
			data = map[string]interface{}{}
		}
		if existing, _ := data["api_key"].(string); strings.TrimSpace(existing) == "" {
			data["api_key"] = key
		}
		items[i].Data = data
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.QueryWindowMs < 0 {
		cfg.QueryWindowMs = 0
	}
	if cfg.Admin.TokenTTLHours <= 0 {
		cfg.Admin.TokenTTLHours = 24
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.Burst <= 0 {
		cfg.AI.Burst = 1
	}
	emb := &cfg.Embedding
	if emb.BatchSize <= 0 {
		emb.BatchSize = 32
	}
	if emb.MaxAttempts <= 0 {
		emb.MaxAttempts = 3
	}
	// Pointers so an explicit 0 survives; only an absent key takes the default.
	if emb.BackoffMs == nil || *emb.BackoffMs < 0 {
		emb.BackoffMs = intPtr(2000)
	}
	if emb.AttemptTimeout <= 0 {
		emb.AttemptTimeout = 30
	}
	if emb.CacheMaxAgeDays <= 0 {
		emb.CacheMaxAgeDays = 30
	}
	rag := &cfg.RAG
	if rag.ChunkSize <= 0 {
		rag.ChunkSize = 1000
	}
	if rag.ChunkOverlap <= 0 {
		rag.ChunkOverlap = 200
	}
	if rag.TopK <= 0 {
		rag.TopK = 5
	}
	if rag.MaxTopK <= 0 {
		rag.MaxTopK = 50
	}
	if rag.SimilarityThreshold == nil {
		rag.SimilarityThreshold = float64Ptr(0.25)
	}
	if rag.PreviewChars <= 0 {
		rag.PreviewChars = 200
	}
	src := &cfg.Source
	if src.Pattern == "" {
		src.Pattern = "*"
	}
	if len(src.AllowedExtensions) == 0 {
		src.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}
	for i, ext := range src.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		src.AllowedExtensions[i] = ext
	}
	if src.MaxFileSize <= 0 {
		src.MaxFileSize = 10 * 1024 * 1024
	}
	if src.WatchDebounceMs <= 0 {
		src.WatchDebounceMs = 1500
	}
	if src.Concurrency <= 0 {
		src.Concurrency = 2
	}
	if cfg.Jobs.ReembedBatch <= 0 {
		cfg.Jobs.ReembedBatch = 64
	}
}

func intPtr(v int) *int { return &v }

func float64Ptr(v float64) *float64 { return &v }

func (c *Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be smaller than rag.chunk_size")
	}
	if t := c.RAG.SimilarityThreshold; t != nil && (*t < -1 || *t > 1) {
		return fmt.Errorf("rag.similarity_threshold must be within [-1, 1]")
	}
	if c.RAG.TopK > c.RAG.MaxTopK {
		return fmt.Errorf("rag.top_k must not exceed rag.max_top_k")
	}
	if !doublestar.ValidatePattern(c.Source.Pattern) {
		return fmt.Errorf("source.pattern %q is not a valid glob", c.Source.Pattern)
	}
	if c.Source.Watch && c.Source.Dir == "" {
		return fmt.Errorf("source.dir is required when source.watch is enabled")
	}
	switch c.FileStore.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	return nil
}

func (c *Config) AllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, item := range c.Source.AllowedExtensions {
		if item == ext {
			return true
		}
	}
	return false
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Portal and registries. An empty registry URL disables that lookup.
	VBPLBaseURL     string
	VBPLPDFBaseURL  string
	ConcettiBaseURL string
	TVPLBaseURL     string
	LuatVNBaseURL   string

	// Storage
	DatabaseURL string
	RedisURL    string
	ArchiveDir  string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	DocWorkers   int
	MaxQueueSize int

	// Outbound calls
	FetchTimeout time.Duration
	PageDelay    time.Duration
	CacheTTL     time.Duration
	RowsPerPage  int

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		VBPLBaseURL:     envOr("VBPL_BASE_URL", "https://vbpl.vn"),
		VBPLPDFBaseURL:  envOr("VBPL_PDF_BASE_URL", "https://vbpl.vn"),
		ConcettiBaseURL: os.Getenv("CONCETTI_BASE_URL"),
		TVPLBaseURL:     envOr("TVPL_BASE_URL", "https://thuvienphapluat.vn"),
		LuatVNBaseURL:   envOr("LUAT_VN_BASE_URL", "https://luatvietnam.vn"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		ArchiveDir:  envOr("ARCHIVE_DIR", "documents"),

		APIKey: os.Getenv("API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		DocWorkers:   envInt("DOC_WORKERS", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		FetchTimeout: envDuration("FETCH_TIMEOUT", 90*time.Second),
		PageDelay:    envDuration("PAGE_DELAY", 3*time.Second),
		CacheTTL:     envDuration("CACHE_TTL", 24*time.Hour),
		RowsPerPage:  envInt("ROWS_PER_PAGE", 130),

		JobTTL: envDuration("JOB_TTL", 24*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.DocWorkers <= 0 {
		cfg.DocWorkers = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 90 * time.Second
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.RowsPerPage <= 0 {
		cfg.RowsPerPage = 130
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}

	return cfg
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	for _, u := range []struct{ key, value string }{
		{"VBPL_BASE_URL", c.VBPLBaseURL},
		{"VBPL_PDF_BASE_URL", c.VBPLPDFBaseURL},
		{"CONCETTI_BASE_URL", c.ConcettiBaseURL},
		{"TVPL_BASE_URL", c.TVPLBaseURL},
		{"LUAT_VN_BASE_URL", c.LuatVNBaseURL},
	} {
		if u.value == "" {
			continue
		}
		parsed, err := url.Parse(u.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", u.key, u.value)
		}
	}
	if c.VBPLBaseURL == "" {
		return fmt.Errorf("VBPL_BASE_URL is required")
	}
	if c.ArchiveDir == "" {
		return fmt.Errorf("ARCHIVE_DIR is required")
	}
	return nil
}

// ValidateServer is Validate plus the settings of the HTTP API.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

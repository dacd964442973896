// Package config loads runtime configuration for the catalog service from
// the environment, with an optional YAML side-file for reference-collection
// seeding.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the service reads at startup. Fields are
// grouped by the subsystem that consumes them.
type Config struct {
	HTTP         HTTPConfig
	Vector       VectorConfig
	Relational   RelationalConfig
	Cache        CacheConfig
	Embedding    EmbeddingConfig
	Batch        BatchConfig
	Search       SearchConfig
	Normalization NormalizationConfig
	SKU          SKUConfig
	Ingest       IngestConfig
	Log          LogConfig
	Correlation  CorrelationConfig
	Objectstore  S3Config
	Obs          ObsConfig
}

// HTTPConfig controls the front door.
type HTTPConfig struct {
	Addr                    string
	MaxBodyBytes            int64
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	ShutdownGrace           time.Duration
	RateLimitCapacity       int
	RateLimitRefillInterval time.Duration
}

// VectorConfig configures the vector store backend.
type VectorConfig struct {
	Backend        string // qdrant | memory
	DSN            string
	CollectionName string
	Dimensions     int
	Distance       string // cosine | euclid | dot
}

// RelationalConfig configures the relational store backend.
type RelationalConfig struct {
	Backend  string // postgres | memory
	DSN      string
	PoolSize int
}

// CacheConfig configures the cache backend and its per-kind TTLs.
type CacheConfig struct {
	Backend      string // redis | memory | none
	DSN          string
	SearchTTL    time.Duration
	MaterialTTL  time.Duration
	HealthTTL    time.Duration
}

// EmbeddingConfig configures the AI embedding abstraction.
type EmbeddingConfig struct {
	Dimension     int
	BatchSize     int
	CacheSize     int
	CacheTTL      time.Duration
	OpenAIKey     string
	OpenAIModel   string
	AnthropicKey  string
	AnthropicModel string
	GenAIKey      string
	GenAIModel    string
	MaxConcurrent int
}

// BatchConfig configures the ingestion batch orchestrator.
type BatchConfig struct {
	MaxConcurrentBatches int
	InnerConcurrency     int
	ChunkSize            int
	RetryBudget          int
	CleanupTTLDays       int
}

// SearchConfig configures the hybrid search engine.
type SearchConfig struct {
	MinSimilarity  float64
	FuzzyThreshold float64
	HybridWeights  HybridWeights
	DefaultPageSize int
	MaxPageSize     int
}

// HybridWeights weights each strategy's contribution in a hybrid query.
type HybridWeights struct {
	Vector float64
	Lexical float64
	Fuzzy   float64
}

// NormalizationConfig configures color/unit normalization against reference collections.
type NormalizationConfig struct {
	ColorThreshold float64
	UnitThreshold  float64
}

// SKUConfig configures SKU assignment confidence bands.
type SKUConfig struct {
	ConfidentThreshold float64
	WeakThreshold      float64
}

// IngestConfig configures the ingestion front door.
type IngestConfig struct {
	MaxUploadBytes int64
}

// LogConfig configures the async batched log sink.
type LogConfig struct {
	Level            string
	FilePath         string
	BatchSize        int
	FlushInterval    time.Duration
	ExcludePaths     []string
	SensitiveFields  []string
	KafkaBrokers     []string
	KafkaTopic       string
}

// CorrelationConfig names the header used to propagate correlation ids.
type CorrelationConfig struct {
	Header string
}

// S3SSEConfig configures server-side encryption for archived objects.
type S3SSEConfig struct {
	Mode     string // "" | sse-s3 | sse-kms
	KMSKeyID string
}

// S3Config configures archival of ingested price-list files via S3 or an
// S3-compatible endpoint (MinIO).
type S3Config struct {
	Backend               string // s3 | memory
	Bucket                string
	Region                string
	Endpoint              string
	Prefix                string
	AccessKey             string
	SecretKey             string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// ObsConfig configures OpenTelemetry tracing/metrics export.
type ObsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLP           string
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseInt64(s string, def int64) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseDurationSeconds(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}

func parseDurationFloatSeconds(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Second))
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads a .env file if present (ignored if missing), then populates a
// Config from the environment, applying defaults and validating required
// fields.
func Load() (*Config, error) {
	_ = godotenv.Overload()

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:                    firstNonEmpty(os.Getenv("HTTP_ADDR"), ":8080"),
			MaxBodyBytes:            parseInt64(os.Getenv("HTTP_MAX_BODY_BYTES"), 10<<20),
			ReadTimeout:             parseDurationSeconds(os.Getenv("HTTP_READ_TIMEOUT_S"), 30*time.Second),
			WriteTimeout:            parseDurationSeconds(os.Getenv("HTTP_WRITE_TIMEOUT_S"), 60*time.Second),
			IdleTimeout:             parseDurationSeconds(os.Getenv("HTTP_IDLE_TIMEOUT_S"), 120*time.Second),
			ShutdownGrace:           parseDurationSeconds(os.Getenv("HTTP_SHUTDOWN_GRACE_S"), 15*time.Second),
			RateLimitCapacity:       parseInt(os.Getenv("HTTP_RATE_LIMIT_CAPACITY"), 0),
			RateLimitRefillInterval: time.Duration(parseInt(os.Getenv("HTTP_RATE_LIMIT_REFILL_MS"), 1000)) * time.Millisecond,
		},
		Vector: VectorConfig{
			Backend:        firstNonEmpty(os.Getenv("VECTOR_BACKEND"), "qdrant"),
			DSN:            os.Getenv("VECTOR_DSN"),
			CollectionName: firstNonEmpty(os.Getenv("VECTOR_COLLECTION_NAME"), "materials"),
			Dimensions:     parseInt(os.Getenv("VECTOR_DIMENSIONS"), 1536),
			Distance:       firstNonEmpty(os.Getenv("VECTOR_DISTANCE"), "cosine"),
		},
		Relational: RelationalConfig{
			Backend:  firstNonEmpty(os.Getenv("RELATIONAL_BACKEND"), "postgres"),
			DSN:      os.Getenv("RELATIONAL_DSN"),
			PoolSize: parseInt(os.Getenv("RELATIONAL_POOL_SIZE"), 10),
		},
		Cache: CacheConfig{
			Backend:     firstNonEmpty(os.Getenv("CACHE_BACKEND"), "redis"),
			DSN:         os.Getenv("CACHE_DSN"),
			SearchTTL:   parseDurationSeconds(os.Getenv("CACHE_TTL_SEARCH_S"), 60*time.Second),
			MaterialTTL: parseDurationSeconds(os.Getenv("CACHE_TTL_MATERIAL_S"), 300*time.Second),
			HealthTTL:   parseDurationSeconds(os.Getenv("CACHE_TTL_HEALTH_S"), 10*time.Second),
		},
		Embedding: EmbeddingConfig{
			Dimension:      parseInt(os.Getenv("EMBEDDING_DIMENSION"), 1536),
			BatchSize:      parseInt(os.Getenv("EMBEDDING_BATCH_SIZE"), 50),
			CacheSize:      parseInt(os.Getenv("EMBEDDING_CACHE_SIZE"), 128),
			CacheTTL:       parseDurationSeconds(os.Getenv("EMBEDDING_CACHE_TTL_S"), 3600*time.Second),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:    firstNonEmpty(os.Getenv("OPENAI_EMBEDDING_MODEL"), "text-embedding-3-small"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel: os.Getenv("ANTHROPIC_EMBEDDING_MODEL"),
			GenAIKey:       os.Getenv("GOOGLE_GENAI_API_KEY"),
			GenAIModel:     firstNonEmpty(os.Getenv("GENAI_EMBEDDING_MODEL"), "text-embedding-004"),
			MaxConcurrent:  parseInt(os.Getenv("EMBEDDING_MAX_CONCURRENT"), 5),
		},
		Batch: BatchConfig{
			MaxConcurrentBatches: parseInt(os.Getenv("BATCH_MAX_CONCURRENT_BATCHES"), 10),
			InnerConcurrency:     parseInt(os.Getenv("BATCH_INNER_CONCURRENCY"), 5),
			ChunkSize:            parseInt(os.Getenv("BATCH_CHUNK_SIZE"), 100),
			RetryBudget:          parseInt(os.Getenv("BATCH_RETRY_BUDGET"), 3),
			CleanupTTLDays:       parseInt(os.Getenv("BATCH_CLEANUP_TTL_DAYS"), 30),
		},
		Search: SearchConfig{
			MinSimilarity:  parseFloat(os.Getenv("SEARCH_MIN_SIMILARITY"), 0.3),
			FuzzyThreshold: parseFloat(os.Getenv("SEARCH_FUZZY_THRESHOLD"), 0.8),
			HybridWeights: HybridWeights{
				Vector:  parseFloat(os.Getenv("SEARCH_HYBRID_WEIGHT_VECTOR"), 0.6),
				Lexical: parseFloat(os.Getenv("SEARCH_HYBRID_WEIGHT_LEXICAL"), 0.3),
				Fuzzy:   parseFloat(os.Getenv("SEARCH_HYBRID_WEIGHT_FUZZY"), 0.1),
			},
			DefaultPageSize: parseInt(os.Getenv("SEARCH_DEFAULT_PAGE_SIZE"), 20),
			MaxPageSize:     parseInt(os.Getenv("SEARCH_MAX_PAGE_SIZE"), 100),
		},
		Normalization: NormalizationConfig{
			ColorThreshold: parseFloat(os.Getenv("NORMALIZATION_COLOR_THRESHOLD"), 0.8),
			UnitThreshold:  parseFloat(os.Getenv("NORMALIZATION_UNIT_THRESHOLD"), 0.85),
		},
		SKU: SKUConfig{
			ConfidentThreshold: parseFloat(os.Getenv("SKU_CONFIDENT_THRESHOLD"), 0.88),
			WeakThreshold:      parseFloat(os.Getenv("SKU_WEAK_THRESHOLD"), 0.75),
		},
		Ingest: IngestConfig{
			MaxUploadBytes: parseInt64(os.Getenv("INGEST_MAX_UPLOAD_BYTES"), 50<<20),
		},
		Log: LogConfig{
			Level:           firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
			FilePath:        os.Getenv("LOG_FILE_PATH"),
			BatchSize:       parseInt(os.Getenv("LOG_BATCH_SIZE"), 100),
			FlushInterval:   parseDurationFloatSeconds(os.Getenv("LOG_FLUSH_INTERVAL_S"), 500*time.Millisecond),
			ExcludePaths:    parseCSV(firstNonEmpty(os.Getenv("LOG_EXCLUDE_PATHS"), "/healthz,/readyz")),
			SensitiveFields: parseCSV(firstNonEmpty(os.Getenv("LOG_SENSITIVE_FIELDS"), "authorization,cookie,set-cookie,x-api-key,password,secret,token,key")),
			KafkaBrokers:    parseCSV(os.Getenv("LOG_KAFKA_BROKERS")),
			KafkaTopic:      os.Getenv("LOG_KAFKA_TOPIC"),
		},
		Correlation: CorrelationConfig{
			Header: firstNonEmpty(os.Getenv("CORRELATION_HEADER"), "X-Correlation-ID"),
		},
		Objectstore: S3Config{
			Backend:               firstNonEmpty(os.Getenv("OBJECTSTORE_BACKEND"), "s3"),
			Bucket:                os.Getenv("OBJECTSTORE_BUCKET"),
			Region:                firstNonEmpty(os.Getenv("OBJECTSTORE_REGION"), "us-east-1"),
			Endpoint:              os.Getenv("OBJECTSTORE_ENDPOINT"),
			Prefix:                firstNonEmpty(os.Getenv("OBJECTSTORE_PREFIX"), "catalog"),
			AccessKey:             os.Getenv("OBJECTSTORE_ACCESS_KEY_ID"),
			SecretKey:             os.Getenv("OBJECTSTORE_SECRET_ACCESS_KEY"),
			UsePathStyle:          parseBool(os.Getenv("OBJECTSTORE_USE_PATH_STYLE"), false),
			TLSInsecureSkipVerify: parseBool(os.Getenv("OBJECTSTORE_TLS_INSECURE_SKIP_VERIFY"), false),
			SSE: S3SSEConfig{
				Mode:     os.Getenv("OBJECTSTORE_SSE_MODE"),
				KMSKeyID: os.Getenv("OBJECTSTORE_SSE_KMS_KEY_ID"),
			},
		},
		Obs: ObsConfig{
			ServiceName:    firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "materials-catalog"),
			ServiceVersion: firstNonEmpty(os.Getenv("OTEL_SERVICE_VERSION"), "dev"),
			Environment:    firstNonEmpty(os.Getenv("OTEL_ENVIRONMENT"), "development"),
			OTLP:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Relational.Backend == "postgres" && strings.TrimSpace(c.Relational.DSN) == "" {
		return fmt.Errorf("RELATIONAL_DSN is required when RELATIONAL_BACKEND=postgres")
	}
	if c.Vector.Backend == "qdrant" && strings.TrimSpace(c.Vector.DSN) == "" {
		return fmt.Errorf("VECTOR_DSN is required when VECTOR_BACKEND=qdrant")
	}
	if c.Cache.Backend == "redis" && strings.TrimSpace(c.Cache.DSN) == "" {
		return fmt.Errorf("CACHE_DSN is required when CACHE_BACKEND=redis")
	}
	if c.Objectstore.Backend == "s3" && strings.TrimSpace(c.Objectstore.Bucket) == "" {
		return fmt.Errorf("OBJECTSTORE_BUCKET is required when OBJECTSTORE_BACKEND=s3")
	}
	if c.Embedding.OpenAIKey == "" && c.Embedding.AnthropicKey == "" && c.Embedding.GenAIKey == "" {
		return fmt.Errorf("at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_GENAI_API_KEY is required")
	}
	return nil
}

// ReferenceSeedPath resolves the YAML file used to seed reference color,
// unit, and material collections on first boot. Empty if none is configured
// or the file does not exist.
func ReferenceSeedPath() string {
	p := firstNonEmpty(os.Getenv("REFERENCE_SEED_PATH"), "reference_seed.yaml")
	abs, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	if _, err := os.Stat(abs); err != nil {
		return ""
	}
	return abs
}

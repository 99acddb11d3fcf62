package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the process-wide, immutable configuration. It is built once in main
// and handed to every component that needs it.
type Settings struct {
	Server   ServerSettings   `yaml:"server"`
	Pipeline PipelineSettings `yaml:"pipeline"`
	Backends BackendSettings  `yaml:"backends"`
	Log      LogSettings      `yaml:"log"`
}

type ServerSettings struct {
	ListenAddr   string `yaml:"listen_addr"`
	AuthToken    string `yaml:"auth_token"`
	NoAuthBypass bool   `yaml:"no_auth_bypass"`
	RateLimit    int    `yaml:"rate_limit_per_second"`
	RateBurst    int    `yaml:"rate_burst"`
}

type PipelineSettings struct {
	ChunkSize             int           `yaml:"chunk_size"`
	ChunkOverlap          int           `yaml:"chunk_overlap"`
	TopK                  int           `yaml:"top_k"`
	MinSimilarity         float32       `yaml:"min_similarity"`
	FallbackPassages      int           `yaml:"fallback_passages"`
	MaxContextTokens      int           `yaml:"max_context_tokens"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	LLMCallTimeout        time.Duration `yaml:"llm_call_timeout"`
	MaxConcurrentLLMCalls int           `yaml:"max_concurrent_llm_calls"`
	LLMRequestsPerSecond  float64       `yaml:"llm_requests_per_second"`
	MaxDocumentBytes      int64         `yaml:"max_document_bytes"`
	MaxQuestions          int           `yaml:"max_questions"`
	FetchTimeout          time.Duration `yaml:"fetch_timeout"`
	FetchRetryBackoff     time.Duration `yaml:"fetch_retry_backoff"`
	LLMRetryBackoff       time.Duration `yaml:"llm_retry_backoff"`
	FallbackAnswer        string        `yaml:"fallback_answer"`
	NoContentAnswer       string        `yaml:"no_content_answer"`
}

type BackendSettings struct {
	Embedder       string `yaml:"embedder"`
	EmbeddingModel string `yaml:"embedding_model"`
	LLM            string `yaml:"llm"`
	LLMModel       string `yaml:"llm_model"`
	Index          string `yaml:"index"`
	GeminiAPIKey   string `yaml:"-"`
	OpenAIAPIKey   string `yaml:"-"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"-"`
	QdrantHost     string `yaml:"qdrant_host"`
	QdrantPort     int    `yaml:"qdrant_port"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	IsProd bool   `yaml:"prod"`
}

func Default() Settings {
	return Settings{
		Server: ServerSettings{
			ListenAddr: ServerListenAddr,
			RateLimit:  RATE_LIMIT_PER_SECOND,
			RateBurst:  BURST_RATE_LIMIT_PER_SECOND,
		},
		Pipeline: PipelineSettings{
			ChunkSize:             DefaultChunkSize,
			ChunkOverlap:          DefaultChunkOverlap,
			TopK:                  DefaultTopK,
			MinSimilarity:         DefaultMinSimilarity,
			FallbackPassages:      DefaultFallbackPassages,
			MaxContextTokens:      DefaultMaxContextTokens,
			RequestTimeout:        DefaultRequestTimeout,
			LLMCallTimeout:        DefaultLLMCallTimeout,
			MaxConcurrentLLMCalls: DefaultMaxConcurrentLLMCalls,
			LLMRequestsPerSecond:  DefaultLLMRequestsPerSecond,
			MaxDocumentBytes:      DefaultMaxDocumentBytes,
			MaxQuestions:          DefaultMaxQuestions,
			FetchTimeout:          DefaultFetchTimeout,
			FetchRetryBackoff:     DefaultFetchRetryBackoff,
			LLMRetryBackoff:       DefaultLLMRetryBackoff,
			FallbackAnswer:        FallbackAnswer,
			NoContentAnswer:       NoContentAnswer,
		},
		Backends: BackendSettings{
			Embedder:   EmbedderHash,
			LLM:        LLMGemini,
			Index:      IndexMemory,
			RedisAddr:  RedisAddr,
			QdrantHost: QdrantHost,
			QdrantPort: QdrantGrpcPort,
		},
		Log: LogSettings{
			Level:  "DEBUG",
			IsProd: IS_PROD,
		},
	}
}

// Load builds the settings: defaults, then the optional yaml file, then the environment.
// A missing file is not an error.
func Load(path string) (Settings, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (s Settings) Validate() error {
	p := s.Pipeline
	switch {
	case p.ChunkSize <= 0:
		return errors.New("chunk_size must be positive")
	case p.ChunkOverlap < 0:
		return errors.New("chunk_overlap must not be negative")
	case p.ChunkOverlap >= p.ChunkSize:
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", p.ChunkOverlap, p.ChunkSize)
	case p.TopK <= 0:
		return errors.New("top_k must be positive")
	case p.MaxContextTokens <= 0:
		return errors.New("max_context_tokens must be positive")
	case p.MaxConcurrentLLMCalls <= 0:
		return errors.New("max_concurrent_llm_calls must be positive")
	case p.MaxDocumentBytes <= 0:
		return errors.New("max_document_bytes must be positive")
	case p.RequestTimeout <= 0:
		return errors.New("request_timeout must be positive")
	case p.LLMCallTimeout <= 0:
		return errors.New("llm_call_timeout must be positive")
	case p.FallbackPassages <= 0:
		return errors.New("fallback_passages must be positive")
	case p.MaxQuestions <= 0:
		return errors.New("max_questions must be positive")
	}

	switch s.Backends.Embedder {
	case EmbedderHash, EmbedderGoogle, EmbedderOpenAI:
	default:
		return fmt.Errorf("unknown embedder %q", s.Backends.Embedder)
	}
	switch s.Backends.LLM {
	case LLMGemini, LLMOpenAI:
	default:
		return fmt.Errorf("unknown llm %q", s.Backends.LLM)
	}
	switch s.Backends.Index {
	case IndexMemory, IndexQdrant:
	default:
		return fmt.Errorf("unknown index %q", s.Backends.Index)
	}
	return nil
}

func applyEnv(cfg *Settings, getenv func(string) string) error {
	var firstErr error
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", key, err)
		}
	}
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = d
		}
	}

	str("API_TOKEN", &cfg.Server.AuthToken)
	str("LOG_LEVEL", &cfg.Log.Level)
	if port := getenv("PORT"); port != "" {
		cfg.Server.ListenAddr = ":" + port
	}
	if getenv("NO_AUTH_BYPASS") == "true" {
		cfg.Server.NoAuthBypass = true
	}

	num("DOCQA_CHUNK_SIZE", &cfg.Pipeline.ChunkSize)
	num("DOCQA_CHUNK_OVERLAP", &cfg.Pipeline.ChunkOverlap)
	num("DOCQA_TOP_K", &cfg.Pipeline.TopK)
	num("DOCQA_MAX_CONTEXT_TOKENS", &cfg.Pipeline.MaxContextTokens)
	num("DOCQA_MAX_CONCURRENT_LLM_CALLS", &cfg.Pipeline.MaxConcurrentLLMCalls)
	num("DOCQA_MAX_QUESTIONS", &cfg.Pipeline.MaxQuestions)
	dur("DOCQA_REQUEST_TIMEOUT", &cfg.Pipeline.RequestTimeout)
	dur("DOCQA_LLM_CALL_TIMEOUT", &cfg.Pipeline.LLMCallTimeout)
	if v := getenv("DOCQA_MAX_DOCUMENT_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail("DOCQA_MAX_DOCUMENT_BYTES", err)
		} else {
			cfg.Pipeline.MaxDocumentBytes = n
		}
	}

	str("DOCQA_EMBEDDER", &cfg.Backends.Embedder)
	str("DOCQA_EMBEDDING_MODEL", &cfg.Backends.EmbeddingModel)
	str("DOCQA_LLM", &cfg.Backends.LLM)
	str("DOCQA_LLM_MODEL", &cfg.Backends.LLMModel)
	str("DOCQA_INDEX", &cfg.Backends.Index)
	str("GEMINI_API_KEY", &cfg.Backends.GeminiAPIKey)
	str("OPENAI_API_KEY", &cfg.Backends.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &cfg.Backends.OpenAIBaseURL)
	str("REDIS_ADDR", &cfg.Backends.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Backends.RedisPassword)
	str("QDRANT_HOST", &cfg.Backends.QdrantHost)
	num("QDRANT_PORT", &cfg.Backends.QdrantPort)

	return firstErr
}

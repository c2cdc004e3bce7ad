package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"video-relay-server/modules/common/logx"
)

// DefaultEndpointID - 배포된 모델 엔드포인트 ID 기본값 (VERTEXAI_ENDPOINT_ID 로 덮어씀)
const DefaultEndpointID = "your-endpoint-id"

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Vertex AI
	ProjectID       string
	Region          string
	EndpointID      string
	APIEndpoint     string
	CredentialsJSON string
	CredentialsPath string
	PredictTimeout  time.Duration

	// Circuit breaker
	BreakerEnabled          bool
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration

	// Server
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string

	LogLevel string
}

// LoadConfig - 환경변수 로드 (.env 파일이 있으면 먼저 읽음)
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logx.Log.Debug().Msg("⚠️  .env file not found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv - lookup 함수에서 설정을 구성하고 검증
func FromEnv(lookup func(string) string) (*Config, error) {
	l := loader{lookup: lookup}

	predictTimeout := l.duration("PREDICT_TIMEOUT", 120*time.Second)

	cfg := &Config{
		ProjectID:       l.str("GCP_PROJECT_ID", ""),
		Region:          l.str("GCP_REGION", ""),
		EndpointID:      l.str("VERTEXAI_ENDPOINT_ID", DefaultEndpointID),
		APIEndpoint:     l.str("VERTEXAI_API_ENDPOINT", ""),
		CredentialsJSON: l.str("VERTEXAI_CREDENTIALS_JSON", ""),
		CredentialsPath: l.str("VERTEXAI_CREDENTIALS_PATH", ""),
		PredictTimeout:  predictTimeout,

		BreakerEnabled:          l.boolean("BREAKER_ENABLED", true),
		BreakerFailureThreshold: uint32(l.integer("BREAKER_FAILURE_THRESHOLD", 5)),
		BreakerOpenTimeout:      l.duration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		Port:               l.str("PORT", "8080"),
		ReadTimeout:        l.duration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       l.duration("SERVER_WRITE_TIMEOUT", predictTimeout+10*time.Second),
		IdleTimeout:        l.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    l.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSAllowedOrigins: splitList(l.str("CORS_ALLOWED_ORIGINS", "*")),

		LogLevel: l.str("LOG_LEVEL", "info"),
	}

	if l.err != nil {
		return nil, l.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required")
	}
	if c.Region == "" {
		return fmt.Errorf("GCP_REGION is required")
	}
	if strings.ContainsAny(c.ProjectID+c.Region+c.EndpointID, "/ ") {
		return fmt.Errorf("GCP_PROJECT_ID, GCP_REGION and VERTEXAI_ENDPOINT_ID must not contain '/' or spaces")
	}
	if c.PredictTimeout <= 0 {
		return fmt.Errorf("PREDICT_TIMEOUT must be positive, got %s", c.PredictTimeout)
	}
	if c.WriteTimeout <= c.PredictTimeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must be greater than PREDICT_TIMEOUT (%s)", c.WriteTimeout, c.PredictTimeout)
	}
	if c.BreakerEnabled && c.BreakerFailureThreshold == 0 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	return nil
}

// Addr - HTTP 서버 listen 주소
func (c *Config) Addr() string {
	return ":" + c.Port
}

// loader collects the first parse error so FromEnv can report it after building the struct.
type loader struct {
	lookup func(string) string
	err    error
}

func (l *loader) str(key, defaultValue string) string {
	if value := strings.TrimSpace(l.lookup(key)); value != "" {
		return value
	}
	return defaultValue
}

func (l *loader) duration(key string, defaultValue time.Duration) time.Duration {
	raw := l.str(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return defaultValue
	}
	return d
}

func (l *loader) integer(key string, defaultValue int) int {
	raw := l.str(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		l.fail(fmt.Errorf("invalid %s %q: must be a non-negative integer", key, raw))
		return defaultValue
	}
	return n
}

func (l *loader) boolean(key string, defaultValue bool) bool {
	raw := l.str(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		l.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return defaultValue
	}
	return b
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/societybill/internal/config"
)

// Config holds observability configuration derived from environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "societybill"
	}
	otlpProtocol := strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))
	if tracesProtocol := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); tracesProtocol != "" {
		otlpProtocol = strings.ToLower(tracesProtocol)
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          getenv("DEPLOYMENT_ENV", cfg.Environment),
		Version:              getenv("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getenv("LOG_FORMAT", "json")),
		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: otlpProtocol,
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}

func getenvBool(key string, def bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return value
}

func getenvFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}

package telemetry

import (
	"os"
	"strings"
)

// DefaultServiceName is reported when OTEL_SERVICE_NAME is not set.
const DefaultServiceName = "histobench"

// Config holds OpenTelemetry configuration loaded from environment variables.
type Config struct {
	// Enabled is read from OTEL_ENABLED.
	Enabled bool

	// ServiceName is read from OTEL_SERVICE_NAME.
	ServiceName string

	// ServiceVersion is read from OTEL_SERVICE_VERSION. The CLI passes its
	// build version when the variable is unset.
	ServiceVersion string

	// Endpoint is the OTLP collector endpoint, OTEL_EXPORTER_OTLP_ENDPOINT.
	// An http:// scheme implies an insecure connection.
	Endpoint string

	// Protocol is grpc (default) or http/protobuf, OTEL_EXPORTER_OTLP_PROTOCOL.
	Protocol string

	// Headers are sent with every export, OTEL_EXPORTER_OTLP_HEADERS
	// in "key1=value1,key2=value2" form.
	Headers map[string]string

	// Insecure disables TLS, OTEL_EXPORTER_OTLP_INSECURE.
	Insecure bool

	// Sampler is OTEL_TRACES_SAMPLER; see createSampler for the accepted names.
	Sampler string

	// SamplerArg is OTEL_TRACES_SAMPLER_ARG, the ratio of ratio samplers.
	SamplerArg string

	// ResourceAttrs are extra resource attributes, OTEL_RESOURCE_ATTRIBUTES.
	ResourceAttrs map[string]string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Enabled:        envBool("OTEL_ENABLED"),
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", DefaultServiceName),
		ServiceVersion: os.Getenv("OTEL_SERVICE_VERSION"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       getEnvOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE"),
		Sampler:        os.Getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
		ResourceAttrs:  parseKeyValuePairs(os.Getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseKeyValuePairs parses "k1=v1,k2=v2". Values may contain '='.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}

package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// SamplerAlways samples all traces.
	SamplerAlways = "always"

	// SamplerNever samples no traces.
	SamplerNever = "never"

	// SamplerRatio samples a fraction of traces by trace ID.
	SamplerRatio = "ratio"
)

// createSampler builds a parent-based sampler, so child spans follow the
// decision already made for their trace.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	if err := ValidateSampler(strategy, ratio); err != nil {
		return nil, err
	}

	var base sdktrace.Sampler
	switch strategy {
	case SamplerNever:
		base = sdktrace.NeverSample()
	case SamplerRatio:
		base = sdktrace.TraceIDRatioBased(ratio)
	default:
		base = sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(base), nil
}

// ValidateSampler checks a sampler strategy and ratio. An empty strategy
// means "always".
func ValidateSampler(strategy string, ratio float64) error {
	switch strategy {
	case "", SamplerAlways, SamplerNever:
		return nil
	case SamplerRatio:
		if ratio < 0.0 || ratio > 1.0 {
			return fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
		}
		return nil
	default:
		return fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio)", strategy)
	}
}

package config

import (
	"fmt"

	"sift/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateResolver(cfg.Resolver); err != nil {
		errors = append(errors, err)
	}

	if err := validateAttribution(cfg.Attribution); err != nil {
		errors = append(errors, err)
	}

	if err := validateHeuristic(cfg.Heuristic); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return nil // broker is optional; events are skipped when unset
	}

	switch cfg.Type {
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "broker.kafka.brokers",
				Message: "at least one broker address is required",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateResolver(cfg ResolverConfig) error {
	if cfg.MaxHops < 0 {
		return &ValidationError{
			Field:   "resolver.max_hops",
			Message: "max hops must not be negative",
		}
	}

	if cfg.MaxHops > 50 {
		return &ValidationError{
			Field:   "resolver.max_hops",
			Message: fmt.Sprintf("max hops %d is unreasonably high (limit 50)", cfg.MaxHops),
		}
	}

	if cfg.HopTimeout < 0 || cfg.ChainBudget < 0 {
		return &ValidationError{
			Field:   "resolver.hop_timeout",
			Message: "timeouts must not be negative",
		}
	}

	return nil
}

func validateAttribution(cfg AttributionConfig) error {
	if cfg.BatchSize < 0 {
		return &ValidationError{
			Field:   "attribution.batch_size",
			Message: "batch size must not be negative",
		}
	}

	if cfg.BatchSize > constants.MaxBatchSize {
		return &ValidationError{
			Field:   "attribution.batch_size",
			Message: fmt.Sprintf("batch size must not exceed %d, got %d", constants.MaxBatchSize, cfg.BatchSize),
		}
	}

	if cfg.Concurrency < 0 {
		return &ValidationError{
			Field:   "attribution.concurrency",
			Message: "concurrency must not be negative",
		}
	}

	return nil
}

func validateHeuristic(cfg HeuristicConfig) error {
	if cfg.MinLinks < 0 {
		return &ValidationError{
			Field:   "heuristic.min_links",
			Message: "min links must not be negative",
		}
	}

	for domain, entityID := range cfg.SenderEntities {
		if domain == "" || entityID == "" {
			return &ValidationError{
				Field:   "heuristic.sender_entities",
				Message: "sender domain and entity id must both be non-empty",
			}
		}
	}

	return nil
}

package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
)

// Validator validates and normalizes a configuration value.
// Returns the normalized value and an error if validation fails.
type Validator func(key, value, defaultValue string) (normalized string, err error)

// validatorRegistry manages the set of registered validators.
type validatorRegistry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// registry is the global validator registry.
var registry = &validatorRegistry{
	validators: make(map[string]Validator),
}

// RegisterValidator registers a validator for a configuration key.
// Panics if a validator is already registered for the key.
func RegisterValidator(key string, validator Validator) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.validators[key]; exists {
		panic(fmt.Sprintf("validator already registered for key: %s", key))
	}
	registry.validators[key] = validator
}

// getValidator returns the validator for a key, or nil if not registered.
func getValidator(key string) Validator {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.validators[key]
}

// PositiveIntValidator returns a validator that ensures a value is a positive integer.
func PositiveIntValidator() Validator {
	return func(key, value, defaultValue string) (string, error) {
		if value == "" {
			return defaultValue, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			colors.Warning(fmt.Sprintf("invalid %s value '%s': must be a positive integer, using default: %s", key, value, defaultValue))
			return defaultValue, nil
		}
		return value, nil
	}
}

// NonNegativeIntValidator accepts zero and positive integers.
func NonNegativeIntValidator() Validator {
	return func(key, value, defaultValue string) (string, error) {
		if value == "" {
			return defaultValue, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			colors.Warning(fmt.Sprintf("invalid %s value '%s': must be zero or a positive integer, using default: %s", key, value, defaultValue))
			return defaultValue, nil
		}
		return value, nil
	}
}

// EnumValidator returns a validator that ensures a value is one of the allowed enum values.
func EnumValidator(allowed map[string]bool) Validator {
	return func(key, value, defaultValue string) (string, error) {
		if value == "" {
			return defaultValue, nil
		}
		valueLower := strings.ToLower(value)
		if !allowed[valueLower] {
			colors.Warning(fmt.Sprintf("invalid %s value '%s': must be one of: %s; using default: %s", key, value, allowedValues(allowed), defaultValue))
			return defaultValue, nil
		}
		return valueLower, nil
	}
}

// BoolValidator returns a validator that normalizes and validates boolean values.
func BoolValidator() Validator {
	return func(key, value, defaultValue string) (string, error) {
		if value == "" {
			return defaultValue, nil
		}
		normalized := normalizeBool(value)
		if normalized != "true" && normalized != "false" {
			colors.Warning(fmt.Sprintf("invalid boolean value for %s: '%s', must be one of: 1, true, yes, on, 0, false, no, off; using default: %s", key, value, defaultValue))
			return defaultValue, nil
		}
		return normalized, nil
	}
}

// DurationValidator validates Go-style duration strings (e.g., 30s, 1m, 2h).
// Bare integers are accepted as milliseconds.
func DurationValidator() Validator {
	return func(key, value, defaultValue string) (string, error) {
		if value == "" {
			return defaultValue, nil
		}
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return (time.Duration(ms) * time.Millisecond).String(), nil
		}
		duration, err := time.ParseDuration(value)
		if err != nil || duration <= 0 {
			colors.Warning(fmt.Sprintf("invalid duration for %s: '%s', must be a Go-style duration (e.g. 30s, 5m); using default: %s", key, value, defaultValue))
			return defaultValue, nil
		}
		return duration.String(), nil
	}
}

// URLValidator ensures a value is an absolute http(s) URL without a trailing slash.
func URLValidator() Validator {
	return func(key, value, defaultValue string) (string, error) {
		if value == "" {
			return defaultValue, nil
		}
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			colors.Warning(fmt.Sprintf("invalid %s value '%s': must be an absolute http(s) URL; using default: %s", key, value, defaultValue))
			return defaultValue, nil
		}
		return strings.TrimRight(value, "/"), nil
	}
}

// initValidators registers all configuration validators.
func initValidators() {
	positiveIntValidator := PositiveIntValidator()
	RegisterValidator("dedup_capacity", positiveIntValidator)
	RegisterValidator("display_rate", positiveIntValidator)
	RegisterValidator("logging_max_files", positiveIntValidator)
	RegisterValidator("hooks_max_async", positiveIntValidator)
	RegisterValidator("redis_db", NonNegativeIntValidator())

	durationValidator := DurationValidator()
	RegisterValidator("polling_interval", durationValidator)
	RegisterValidator("history_retention", durationValidator)
	RegisterValidator("auto_setup_delay", durationValidator)
	RegisterValidator("dedup_ttl", durationValidator)
	RegisterValidator("backend_timeout", durationValidator)
	RegisterValidator("hooks_async_timeout", durationValidator)

	urlValidator := URLValidator()
	RegisterValidator("backend_url", urlValidator)
	RegisterValidator("app_origin", urlValidator)

	RegisterValidator("auth_scheme", EnumValidator(map[string]bool{"token": true, "bearer": true}))
	RegisterValidator("worker_window_match", EnumValidator(map[string]bool{"exact-root": true, "same-origin": true}))
	RegisterValidator("permission_policy", EnumValidator(map[string]bool{"prompt": true, "grant": true, "deny": true}))
	RegisterValidator("dedup_backend", EnumValidator(map[string]bool{"none": true, "memory": true, "sqlite": true, "redis": true}))
	RegisterValidator("display", EnumValidator(map[string]bool{"terminal": true, "shoutrrr": true, "both": true}))
	RegisterValidator("credential_backend", EnumValidator(map[string]bool{"store": true, "keyring": true}))
	RegisterValidator("dedup_criteria", EnumValidator(map[string]bool{"id": true, "content": true}))
	RegisterValidator("hooks_failure_mode", EnumValidator(map[string]bool{"ignore": true, "warn": true, "abort": true}))
	RegisterValidator("logging_level", EnumValidator(map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}))

	boolValidator := BoolValidator()
	RegisterValidator("auto_setup", boolValidator)
	RegisterValidator("polling_enabled", boolValidator)
	RegisterValidator("polling_allow_overlap", boolValidator)
	RegisterValidator("sound_enabled", boolValidator)
	RegisterValidator("hooks_enabled", boolValidator)
	RegisterValidator("hooks_async", boolValidator)
	RegisterValidator("logging_enabled", boolValidator)
	RegisterValidator("debug", boolValidator)
	RegisterValidator("quiet", boolValidator)
}

// normalizeBool converts various boolean representations to "true"/"false".
func normalizeBool(val string) string {
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return "true"
	case "0", "false", "no", "off":
		return "false"
	default:
		// If invalid, return as-is; validation will fix it.
		return val
	}
}

// allowedValues returns a comma-separated string of allowed values.
func allowedValues(allowed map[string]bool) string {
	values := make([]string, 0, len(allowed))
	for k := range allowed {
		values = append(values, k)
	}
	sort.Strings(values)
	return strings.Join(values, ", ")
}

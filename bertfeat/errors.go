package internal

import "fmt"

// ConfigError reports an invalid or missing field discovered while loading
// the tokenizer config or validating the model. Initialization must not
// proceed once one is returned; no partial state is usable.
type ConfigError struct {
	Field    string
	Observed string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Observed == "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s (observed %s)", e.Field, e.Reason, e.Observed)
}

// NewConfigError builds a ConfigError for the given field. observed may be
// empty when the field is missing entirely.
func NewConfigError(field, observed, reason string) *ConfigError {
	return &ConfigError{Field: field, Observed: observed, Reason: reason}
}

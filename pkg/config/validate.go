package config

// ValidatableConfig is a configuration that can report its own errors.
type ValidatableConfig interface {
	Validate() []error
}

// Validate collects the validation errors of all given configurations.
func Validate(cfgs ...ValidatableConfig) []error {
	var out []error

	for _, cfg := range cfgs {
		out = append(out, cfg.Validate()...)
	}

	return out
}

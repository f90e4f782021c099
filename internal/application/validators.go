package application

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/aphrc/proposal-review/internal/domain"
)

// registerCustomValidators adds the config and submission rules that
// struct tags cannot express with the built-in validators.
func registerCustomValidators(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"schema":  validateSchema,
		"matcher": validateMatcher,
		"httpurl": validateHTTPURL,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// newValidator returns a validator with the custom rules registered.
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return v, nil
}

// validateSchema accepts an empty value or a known marking sheet schema.
func validateSchema(fl validator.FieldLevel) bool {
	_, err := domain.ProfileFor(domain.Schema(fl.Field().String()))
	return err == nil
}

// validateMatcher accepts an empty value or a known matcher kind.
func validateMatcher(fl validator.FieldLevel) bool {
	switch domain.MatcherKind(fl.Field().String()) {
	case "", domain.MatcherGreedy, domain.MatcherSimilarity:
		return true
	}
	return false
}

// validateHTTPURL requires an absolute http or https URL with a host.
func validateHTTPURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validateConfigSemantics checks rules spanning several sections.
func validateConfigSemantics(cfg *Config) error {
	if cfg.Mirror.Driver == "postgres" {
		if cfg.Mirror.Postgres.Addr == "" || cfg.Mirror.Postgres.Database == "" {
			return fmt.Errorf("mirror.postgres.addr and mirror.postgres.database are required for the postgres driver")
		}
	}
	if cfg.Redcap.Retry.MaxDelay < cfg.Redcap.Retry.BaseDelay {
		return fmt.Errorf("redcap.retry.max_delay must not be below base_delay")
	}
	if cfg.Redcap.RateLimit.RequestsPerSecond > 0 && cfg.Redcap.RateLimit.Burst == 0 {
		return fmt.Errorf("redcap.rate_limit.burst must be positive when a rate is set")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers LureKit-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	if err := v.RegisterValidation("abs_path", validateAbsPath); err != nil {
		return fmt.Errorf("failed to register abs_path validator: %w", err)
	}
	return nil
}

// validateDuration accepts any value time.ParseDuration accepts,
// plus plain "0".
func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// validateAbsPath requires an absolute filesystem path.
func validateAbsPath(fl validator.FieldLevel) bool {
	return filepath.IsAbs(fl.Field().String())
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages if validation fails.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report config keys the way users write them (server.addr, not
	// Server.Addr).
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Negative durations make no sense for any of these fields.
	for _, f := range []struct {
		name, raw string
	}{
		{"server.timeout", c.Server.Timeout},
		{"server.cache_ttl", c.Server.CacheTTL},
		{"session.refresh_lead", c.Session.RefreshLead},
	} {
		if d, err := time.ParseDuration(f.raw); err == nil && d < 0 {
			return fmt.Errorf("%s must not be negative, got %q", f.name, f.raw)
		}
	}

	return nil
}

// formatValidationErrors converts validator errors into readable messages
// that name the offending field and the rule it broke.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		field = strings.TrimPrefix(field, "config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL, got %q", field, fe.Value()))
		case "duration":
			msgs = append(msgs, fmt.Sprintf("%s must be a duration like \"30s\" or \"5m\", got %q", field, fe.Value()))
		case "abs_path":
			msgs = append(msgs, fmt.Sprintf("%s must be an absolute path, got %q", field, fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		case "hostname_port":
			msgs = append(msgs, fmt.Sprintf("%s must be a host:port address, got %q", field, fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

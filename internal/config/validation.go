package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterValidation("loglevel", validateLogLevel)
	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration.
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCrossField(cfg)
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateCrossField performs validations that span more than one field.
func validateCrossField(cfg *Config) error {
	if cfg.NotificationsEnabled && !cfg.NotifierConfigured() {
		return fmt.Errorf("notifications_enabled requires telegram_bot_token and telegram_chat_id")
	}
	if cfg.ProxyEnabled {
		if cfg.ProxyEndpoint == "" || cfg.ProxyUsername == "" || cfg.ProxyPassword == "" {
			return fmt.Errorf("proxy_enabled requires proxy_endpoint, proxy_username, and proxy_password")
		}
	}
	if cfg.PreStartWindowMinutes < 30 {
		return fmt.Errorf("pre_start_window_minutes must be at least 30 to cover both checkpoints")
	}
	return nil
}

func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var lines []string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			lines = append(lines, fmt.Sprintf("field %q is required", field))
		case "gt", "gte", "lt", "lte":
			lines = append(lines, fmt.Sprintf("field %q violates numeric constraint %s", field, tag))
		case "loglevel":
			lines = append(lines, fmt.Sprintf("field %q must be one of: debug, info, warn, error, got %q", field, value))
		default:
			lines = append(lines, fmt.Sprintf("field %q failed validation %q", field, tag))
		}
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(lines, "\n- "))
}

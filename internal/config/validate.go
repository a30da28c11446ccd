package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Channel credentials
	if c.WhatsApp.PhoneNumberID == "" {
		errs = append(errs, "WHATSAPP_PHONE_NUMBER_ID is required")
	}
	if c.WhatsApp.AccessToken == "" {
		errs = append(errs, "WHATSAPP_ACCESS_TOKEN is required")
	}
	if c.WhatsApp.VerifyToken == "" {
		errs = append(errs, "WHATSAPP_VERIFY_TOKEN is required")
	}

	// Downstream API keys
	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM_API_KEY is required")
	}
	if c.Speech.APIKey == "" {
		errs = append(errs, "SPEECH_API_KEY is required")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Admission and retention windows
	if c.Limits.RateMax < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_RATE_MAX must be positive, got %d", c.Limits.RateMax))
	}
	if c.Limits.RateWindowSec < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_RATE_WINDOW_SEC must be positive, got %d", c.Limits.RateWindowSec))
	}
	if c.Limits.ContextTTLSec < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_CONTEXT_TTL_SEC must be positive, got %d", c.Limits.ContextTTLSec))
	}
	if c.Limits.HistoryMax < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_HISTORY_MAX must be positive, got %d", c.Limits.HistoryMax))
	}
	if c.Limits.RetrievalTopK < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_RETRIEVAL_TOPK must be positive, got %d", c.Limits.RetrievalTopK))
	}
	if c.Limits.MinRelevance < 0 || c.Limits.MinRelevance > 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_MIN_RELEVANCE must be in [0,1], got %g", c.Limits.MinRelevance))
	}
	if c.Limits.CallTimeout <= 0 {
		errs = append(errs, "LIMITS_CALL_TIMEOUT must be positive")
	}
	if c.Limits.TurnTimeout <= 0 {
		errs = append(errs, "LIMITS_TURN_TIMEOUT must be positive")
	}
	if c.Limits.CallTimeout > 0 && c.Limits.TurnTimeout > 0 && c.Limits.CallTimeout > c.Limits.TurnTimeout {
		errs = append(errs, "LIMITS_CALL_TIMEOUT must not exceed LIMITS_TURN_TIMEOUT")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

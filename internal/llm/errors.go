package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFatalAPI marks provider errors that retrying cannot fix
// (exhausted credit, quota, bad credentials).
var ErrFatalAPI = errors.New("fatal LLM API error")

// ErrModelNotFound marks a configured model identifier the provider does not recognise.
var ErrModelNotFound = errors.New("model not found")

// ErrMalformedOutput marks a response that could not be parsed or validated.
var ErrMalformedOutput = errors.New("malformed model output")

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}

// IsModelNotFound reports whether err says the requested model does not exist.
func IsModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrModelNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "model") {
		return false
	}
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "not_found") ||
		strings.Contains(msg, "404") ||
		strings.Contains(msg, "does not exist")
}

// classifyError tags provider errors with ErrModelNotFound or ErrFatalAPI.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if IsModelNotFound(err) && !errors.Is(err, ErrModelNotFound) {
		return fmt.Errorf("%w: %w", ErrModelNotFound, err)
	}
	return wrapFatalError(err)
}

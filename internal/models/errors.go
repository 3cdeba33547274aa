package models

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"google.golang.org/genai"
)

// Category is a coarse class of provider failure.
type Category string

const (
	CategoryRateLimit Category = "rate_limit"
	CategoryAuth      Category = "auth"
	CategoryNetwork   Category = "network"
	CategoryOther     Category = "other"
)

// Classify maps a provider error to a Category, using the HTTP status when
// the SDK exposes one and the error text otherwise.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	if code := statusCode(err); code != 0 {
		switch {
		case code == http.StatusTooManyRequests:
			return CategoryRateLimit
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return CategoryAuth
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout || code == http.StatusBadGateway || code == http.StatusServiceUnavailable:
			return CategoryNetwork
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit"):
		return CategoryRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "api_key") || strings.Contains(msg, "api key"):
		return CategoryAuth
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection"):
		return CategoryNetwork
	}
	return CategoryOther
}

func statusCode(err error) int {
	var openaiErr *openaisdk.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode
	}
	var claudeErr *anthropicsdk.Error
	if errors.As(err, &claudeErr) {
		return claudeErr.StatusCode
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return geminiErr.Code
	}
	return 0
}

// UserMessage is the short reply shown to the user for a failure category.
// CategoryOther has none; callers fall back to the offline reply.
func UserMessage(c Category) string {
	switch c {
	case CategoryRateLimit:
		return "⚠️ Rate limit reached. Wait a moment and try again."
	case CategoryAuth:
		return "⚠️ Invalid API key. Please check the API key in your settings."
	case CategoryNetwork:
		return "⚠️ Connection issue. Check your internet connection."
	}
	return ""
}

package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrEmptyReference   = errors.New("empty image reference")
	ErrFetchFailure     = errors.New("image fetch failed")         // Wraps the specific cause
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")    // Wraps original status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")    // Wraps original status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-200)") // Wraps original status
	ErrNotImage         = errors.New("response is not an image")   // Non-image content type with a tiny body
	ErrImageTooLarge    = errors.New("image exceeds max size")     // Body exceeded max_image_size_bytes
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")

	ErrCacheWrite            = errors.New("cache write failed") // Logged only, never surfaced
	ErrCacheMiss             = errors.New("cache entry not found")
	ErrDecodeFailure         = errors.New("image decode failed")
	ErrEncodeFailure         = errors.New("jpeg encode failed")
	ErrCompressionOverBudget = errors.New("image cannot be compressed within budget")
	ErrInputTooLarge         = errors.New("input image too large")
	ErrUnknownVariant        = errors.New("unknown compression variant")

	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger/redis errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrConfigValidation = errors.New("configuration validation error")
)

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrEmptyReference):
		return "Input_EmptyReference"
	case errors.Is(err, ErrInputTooLarge):
		return "Input_TooLarge"
	case errors.Is(err, ErrUnknownVariant):
		return "Input_UnknownVariant"
	case errors.Is(err, ErrDecodeFailure):
		return "Compress_Decode"
	case errors.Is(err, ErrEncodeFailure):
		return "Compress_Encode"
	case errors.Is(err, ErrCompressionOverBudget):
		return "Compress_OverBudget"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrNotImage):
		return "Fetch_NotImage"
	case errors.Is(err, ErrImageTooLarge):
		return "Fetch_TooLarge"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrCacheWrite):
		return "Cache_Write"
	case errors.Is(err, ErrCacheMiss):
		return "Cache_Miss"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}

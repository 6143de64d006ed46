package gemini

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"tradehub/services/pipeline/internal/provider"
)

// classify maps SDK errors onto the pipeline's taxonomy. HTTP 429 and
// quota-flavoured messages become provider.QuotaError, carrying the
// RetryInfo delay when the API attached one. Everything else passes through
// untouched and fails the job on first occurrence.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return &provider.QuotaError{RetryAfter: retryHint(gerr), Err: err}
		}
		return err
	}

	if strings.Contains(strings.ToLower(err.Error()), "quota") {
		return &provider.QuotaError{Err: err}
	}
	return err
}

// retryHint digs the google.rpc.RetryInfo detail out of an API error.
// The API encodes the delay as a string like "33s".
func retryHint(gerr *googleapi.Error) time.Duration {
	for _, detail := range gerr.Details {
		m, ok := detail.(map[string]interface{})
		if !ok {
			continue
		}
		typ, _ := m["@type"].(string)
		if !strings.Contains(typ, "RetryInfo") {
			continue
		}
		raw, _ := m["retryDelay"].(string)
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

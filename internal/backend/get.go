package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/hubsearch/internal/domain"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/version"
)

// RequestIDHeader carries a per-request id to the backend for log correlation.
const RequestIDHeader = "X-Request-ID"

// GetJSON issues a GET for url through fetch and decodes the JSON body into out.
// Non-2xx responses, and 200 responses carrying a portal-style
// {"error": {"code", "message"}} body, become *domain.RemoteError.
func GetJSON(ctx context.Context, fetch FetchFunc, url string, cred *auth.Credential, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	req.Header.Set("User-Agent", version.UserAgent())
	if cred != nil {
		if err := cred.Apply(req); err != nil {
			return fmt.Errorf("apply credential: %w", err)
		}
	}

	resp, err := fetch(ctx, req)
	if err != nil {
		var re *domain.RemoteError
		if errors.As(err, &re) {
			return re
		}
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteError(resp, url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if re := embeddedError(body, url); re != nil {
		return re
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

type errorBody struct {
	Error *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
	Detail      string `json:"detail"`
	Description string `json:"description"`
}

func embeddedError(body []byte, url string) *domain.RemoteError {
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil || eb.Error == nil {
		return nil
	}
	status := eb.Error.Code
	if status == 0 {
		status = http.StatusBadRequest
	}
	msg := http.StatusText(status)
	if msg == "" {
		// portal token codes (498, 499) have no standard text
		msg = eb.Error.Message
	}
	return &domain.RemoteError{Status: status, URL: url, Message: msg, Detail: eb.Error.Message}
}

// extractMessage pulls a human-readable message out of an error body.
func extractMessage(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		switch {
		case eb.Error != nil && eb.Error.Message != "":
			return eb.Error.Message
		case eb.Detail != "":
			return eb.Detail
		case eb.Description != "":
			return eb.Description
		}
	}
	if len(body) > 0 && len(body) < 256 {
		return strings.TrimSpace(string(body))
	}
	return ""
}

package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrdx0/claude-applet/internal/logger"
)

const (
	usageURL = "https://api.anthropic.com/api/oauth/usage"

	// Beta header required by the OAuth usage endpoint.
	anthropicBeta = "oauth-2025-04-20"
	userAgent     = "claude-code/2.0.61"
)

// authExpiredMarker appears in the API error message when the access token
// needs a refresh rather than a re-login.
const authExpiredMarker = "OAuth token has expired"

// usageResponse is the wire shape of the usage endpoint.
type usageResponse struct {
	FiveHour wirePeriod `json:"five_hour"`
	SevenDay wirePeriod `json:"seven_day"`
	Extra    wireExtra  `json:"extra_usage"`
}

type wirePeriod struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at"`
}

type wireExtra struct {
	IsEnabled    bool  `json:"is_enabled"`
	MonthlyLimit int64 `json:"monthly_limit"`
	UsedCredits  int64 `json:"used_credits"`
}

// apiError is the wire shape of an API error response.
type apiError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// FetchUsage performs one usage query against the Anthropic API. Exactly one
// attempt: retry policy lives with the caller's polling cadence, never here.
func FetchUsage(ctx context.Context, accessToken string) (*UsageData, error) {
	if accessToken == "" {
		return nil, &FetchError{Kind: ErrUnauthorized, Msg: "access token is empty"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, usageURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, Msg: "create usage request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("anthropic-beta", anthropicBeta)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, Msg: "usage request failed", Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, Msg: "read usage response", Err: err}
	}

	return decodeUsage(resp.StatusCode, body)
}

// decodeUsage classifies the HTTP status and body into a snapshot or a typed
// fetch error.
func decodeUsage(status int, body []byte) (*UsageData, error) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &FetchError{Kind: ErrUnauthorized, Msg: apiErrorMessage(body, status)}
	case status == http.StatusTooManyRequests:
		return nil, &FetchError{Kind: ErrRateLimited, Msg: apiErrorMessage(body, status)}
	case status != http.StatusOK:
		msg := apiErrorMessage(body, status)
		if strings.Contains(msg, authExpiredMarker) {
			return nil, &FetchError{Kind: ErrUnauthorized, Msg: msg}
		}
		return nil, &FetchError{Kind: ErrNetwork, Msg: msg}
	}

	var wire usageResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &FetchError{Kind: ErrMalformed, Msg: "decode usage response", Err: err}
	}

	data := &UsageData{
		FiveHour:  wire.FiveHour.toPeriod(),
		SevenDay:  wire.SevenDay.toPeriod(),
		FetchedAt: time.Now(),
		Extra: ExtraUsage{
			Enabled:      wire.Extra.IsEnabled,
			MonthlyLimit: wire.Extra.MonthlyLimit,
			UsedCredits:  wire.Extra.UsedCredits,
		},
	}
	return data, nil
}

func (p wirePeriod) toPeriod() UsagePeriod {
	period := UsagePeriod{Utilization: p.Utilization}
	if p.ResetsAt != "" {
		if t, err := time.Parse(time.RFC3339, p.ResetsAt); err == nil {
			period.ResetsAt = t
		}
	}
	return period
}

// apiErrorMessage extracts the structured API error message from a non-OK
// body, falling back to the status code.
func apiErrorMessage(body []byte, status int) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		return fmt.Sprintf("api error (%s): %s [request_id: %s]",
			ae.Error.Type, ae.Error.Message, ae.RequestID)
	}
	return fmt.Sprintf("usage request failed with status %d", status)
}

// AuthExpired reports whether a fetch failure indicates an expired access
// token that a refresh-token grant can recover.
func AuthExpired(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == ErrUnauthorized
}

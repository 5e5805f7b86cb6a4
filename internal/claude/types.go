// Package claude talks to the Anthropic OAuth and usage endpoints.
package claude

import (
	"errors"
	"fmt"
	"time"
)

// Credentials holds the OAuth tokens for one Claude account.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoggedIn reports whether the credentials can authenticate a request.
func (c Credentials) LoggedIn() bool {
	return c.AccessToken != ""
}

// UsagePeriod is one rolling usage window from the usage endpoint.
type UsagePeriod struct {
	// Utilization is the consumed share of the window quota, in percent.
	Utilization float64   `json:"utilization"`
	ResetsAt    time.Time `json:"resets_at"`
}

// ExtraUsage describes the pay-per-use credit pool beyond plan quota.
type ExtraUsage struct {
	Enabled      bool  `json:"is_enabled"`
	MonthlyLimit int64 `json:"monthly_limit"`
	UsedCredits  int64 `json:"used_credits"`
}

// Percent returns the consumed share of the monthly credit limit.
func (e ExtraUsage) Percent() float64 {
	if e.MonthlyLimit <= 0 {
		return 0
	}
	return float64(e.UsedCredits) / float64(e.MonthlyLimit) * 100
}

// UsageData is one atomic snapshot of account usage. It is never updated
// field by field; a completed fetch replaces the whole value.
type UsageData struct {
	FiveHour UsagePeriod
	SevenDay UsagePeriod
	Extra    ExtraUsage

	// FetchedAt records when the snapshot was taken.
	FetchedAt time.Time
}

// ErrorKind classifies a failed usage fetch.
type ErrorKind int

const (
	// ErrNetwork covers transport failures and unreachable endpoints.
	ErrNetwork ErrorKind = iota
	// ErrUnauthorized covers expired or rejected tokens.
	ErrUnauthorized
	// ErrRateLimited covers 429 responses.
	ErrRateLimited
	// ErrMalformed covers responses that cannot be decoded.
	ErrMalformed
)

// String returns the human-readable kind label shown in the popup.
func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network error"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrRateLimited:
		return "rate limited"
	case ErrMalformed:
		return "malformed response"
	default:
		return "unknown error"
	}
}

// FetchError is a classified usage fetch failure.
type FetchError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind from a fetch error chain.
// Unclassified errors count as network failures.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrNetwork
}

package claude

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/jrdx0/claude-applet/internal/logger"
)

const (
	authURL  = "https://claude.ai/oauth/authorize"
	tokenURL = "https://console.anthropic.com/v1/oauth/token"

	oauthClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	oauthScope    = "user:profile user:inference user:sessions:claude_code"

	redirectPort = 54545
)

// TokenResponse is the token endpoint response for both the authorization
// code and refresh token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Organization struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
	} `json:"organization"`
	Account struct {
		UUID  string `json:"uuid"`
		Email string `json:"email_address"`
	} `json:"account"`
}

// Credentials extracts the token pair persisted between runs.
func (t *TokenResponse) Credentials() Credentials {
	return Credentials{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
}

// generateVerifier produces a PKCE code verifier.
func generateVerifier() (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// generateState produces the OAuth state parameter.
func generateState() (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}

// challengeFor derives the S256 code challenge from a verifier.
func challengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func redirectURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", redirectPort)
}

// buildAuthURL assembles the browser authorization URL.
func buildAuthURL(state, challenge string) string {
	q := url.Values{}
	q.Set("code", "true")
	q.Set("client_id", oauthClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURL())
	q.Set("scope", oauthScope)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", state)
	return authURL + "?" + q.Encode()
}

// openBrowser launches the default browser best-effort. Login still works if
// it fails: the URL is logged and can be opened manually.
func openBrowser(target string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("could not open browser, open the URL manually", "url", target, "error", err)
	}
}

// waitForCallback serves a single localhost request and extracts the
// authorization code after verifying the state parameter.
func waitForCallback(ctx context.Context, expectedState string) (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", redirectPort))
	if err != nil {
		return "", fmt.Errorf("bind callback port %d: %w", redirectPort, err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			logger.Error("failed to close callback listener", "error", err)
		}
	}()

	type result struct {
		code string
		err  error
	}
	resultChan := make(chan result, 1)

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			if query.Get("state") != expectedState {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				resultChan <- result{err: fmt.Errorf("oauth state mismatch")}
				return
			}
			code := query.Get("code")
			if code == "" {
				http.Error(w, "missing code", http.StatusBadRequest)
				resultChan <- result{err: fmt.Errorf("callback missing authorization code")}
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body><h1>Success</h1>You can close this tab.</body></html>"))
			resultChan <- result{code: code}
		}),
	}

	go func() { _ = server.Serve(listener) }()
	defer func() { _ = server.Close() }()

	select {
	case res := <-resultChan:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for oauth callback: %w", ctx.Err())
	}
}

// exchangeCode trades the authorization code for tokens.
func exchangeCode(ctx context.Context, code, state, verifier string) (*TokenResponse, error) {
	body := map[string]string{
		"code":          code,
		"state":         state,
		"grant_type":    "authorization_code",
		"client_id":     oauthClientID,
		"redirect_uri":  redirectURL(),
		"code_verifier": verifier,
	}
	return postToken(ctx, body)
}

// RefreshCredentials exchanges a refresh token for a new token pair.
func RefreshCredentials(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}
	body := map[string]string{
		"client_id":     oauthClientID,
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}
	return postToken(ctx, body)
}

func postToken(ctx context.Context, payload map[string]string) (*TokenResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	return &tokenResp, nil
}

// Login runs the full PKCE flow: open the browser, wait for the callback,
// exchange the code. It blocks until the user completes or the context ends.
func Login(ctx context.Context) (*TokenResponse, error) {
	state, err := generateState()
	if err != nil {
		return nil, err
	}
	verifier, err := generateVerifier()
	if err != nil {
		return nil, err
	}

	target := buildAuthURL(state, challengeFor(verifier))
	logger.Info("opening browser for authorization", "url", target)
	openBrowser(target)

	code, err := waitForCallback(ctx, state)
	if err != nil {
		return nil, err
	}
	logger.Info("received authorization code, exchanging for tokens")

	return exchangeCode(ctx, code, state, verifier)
}

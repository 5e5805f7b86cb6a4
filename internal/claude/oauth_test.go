package claude

import (
	"context"
	"net/url"
	"strings"
	"testing"
)

func TestChallengeFor(t *testing.T) {
	// RFC 7636 appendix B test vector.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := challengeFor(verifier); got != want {
		t.Errorf("challengeFor() = %q, want %q", got, want)
	}
}

func TestGenerateVerifier_Unique(t *testing.T) {
	a, err := generateVerifier()
	if err != nil {
		t.Fatalf("generateVerifier() failed: %v", err)
	}
	b, err := generateVerifier()
	if err != nil {
		t.Fatalf("generateVerifier() failed: %v", err)
	}

	if a == b {
		t.Error("verifiers should be unique")
	}
	if len(a) < 43 {
		t.Errorf("verifier length = %d, want >= 43", len(a))
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("verifier %q is not base64url", a)
	}
}

func TestBuildAuthURL(t *testing.T) {
	raw := buildAuthURL("state-123", "challenge-abc")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("buildAuthURL() produced unparseable URL: %v", err)
	}
	if u.Host != "claude.ai" {
		t.Errorf("host = %q, want claude.ai", u.Host)
	}

	q := u.Query()
	checks := map[string]string{
		"client_id":             oauthClientID,
		"response_type":         "code",
		"state":                 "state-123",
		"code_challenge":        "challenge-abc",
		"code_challenge_method": "S256",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("query %q = %q, want %q", key, got, want)
		}
	}
	if !strings.Contains(q.Get("redirect_uri"), "54545") {
		t.Errorf("redirect_uri = %q, want callback port 54545", q.Get("redirect_uri"))
	}
}

func TestTokenResponse_Credentials(t *testing.T) {
	tok := &TokenResponse{AccessToken: "access", RefreshToken: "refresh"}
	creds := tok.Credentials()

	if creds.AccessToken != "access" || creds.RefreshToken != "refresh" {
		t.Errorf("Credentials() = %+v", creds)
	}
	if !creds.LoggedIn() {
		t.Error("credentials with an access token should count as logged in")
	}
	if (Credentials{}).LoggedIn() {
		t.Error("empty credentials should not count as logged in")
	}
}

func TestRefreshCredentials_EmptyToken(t *testing.T) {
	if _, err := RefreshCredentials(context.Background(), ""); err == nil {
		t.Error("RefreshCredentials() should reject an empty refresh token")
	}
}

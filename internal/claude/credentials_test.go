package claude

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	creds := Credentials{AccessToken: "access", RefreshToken: "refresh"}

	if err := SaveCredentials(path, creds); err != nil {
		t.Fatalf("SaveCredentials() failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("credentials file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials() failed: %v", err)
	}
	if got != creds {
		t.Errorf("LoadCredentials() = %+v, want %+v", got, creds)
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("LoadCredentials() should fail for a missing file")
	}
}

func TestLoadCredentials_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := LoadCredentials(path); err == nil {
		t.Fatal("LoadCredentials() should fail for corrupt JSON")
	}
}

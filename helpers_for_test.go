package sftpdeploy

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// generateTestRSAKey creates a test RSA private key and returns both PEM-encoded
// key content and a path to a temp file containing the key.
func generateTestRSAKey(t *testing.T) (string, string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	privateKeyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}))

	keyPath := filepath.Join(t.TempDir(), "test_key")
	if err := os.WriteFile(keyPath, []byte(privateKeyPEM), 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	return privateKeyPEM, keyPath
}

// generateEncryptedTestKey writes an RSA key encrypted with passphrase and returns its path.
func generateEncryptedTestKey(t *testing.T, passphrase string) string {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	//nolint:staticcheck // legacy PEM encryption is what ParsePrivateKeyWithPassphrase reads.
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY",
		x509.MarshalPKCS1PrivateKey(privateKey), []byte(passphrase), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("failed to encrypt key: %v", err)
	}

	keyPath := filepath.Join(t.TempDir(), "encrypted_key")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}
	return keyPath
}

// createTestFileStructure creates a directory structure with files for testing.
// Files is a map of relative path -> content.
func createTestFileStructure(t *testing.T, files map[string]string) string {
	t.Helper()

	tmpDir := t.TempDir()
	for relPath, content := range files {
		fullPath := filepath.Join(tmpDir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}
	return tmpDir
}

// newObservedLogger returns a debug-level logger whose entries can be inspected.
func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// decisionLines renders the classification and put entries as
// "message local remote" with any "[dry] " prefix removed, the shape compared
// by the dry-run equivalence tests.
func decisionLines(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		msg := strings.TrimPrefix(e.Message, "[dry] ")
		switch msg {
		case "dir", "file", "put", "SKIP missing":
		default:
			continue
		}
		fields := e.ContextMap()
		line := msg
		if v, ok := fields["local"]; ok {
			line += " " + v.(string)
		}
		if v, ok := fields["remote"]; ok {
			line += " " + v.(string)
		}
		out = append(out, line)
	}
	return out
}

// newTestConfig creates a Config pointing at a temp local root.
func newTestConfig(t *testing.T, localRoot string, items ...SyncItem) Config {
	t.Helper()

	return Config{
		Host:       "deploy.example.com",
		Username:   "deploy",
		Password:   "secret",
		RemoteRoot: "/public_html",
		LocalRoot:  localRoot,
		Sync:       items,
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

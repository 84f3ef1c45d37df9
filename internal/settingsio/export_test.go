package settingsio

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/confluence/internal/encryption"
	"github.com/sydlexius/confluence/internal/provider"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	return db
}

// newTestSettings creates a provider settings service with its own
// fresh at-rest encryption key, standing in for one instance.
func newTestSettings(t *testing.T, db *sql.DB) *provider.SettingsService {
	t.Helper()
	key, err := encryption.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	enc, err := encryption.NewEncryptor(key)
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	return provider.NewSettingsService(db, enc)
}

func TestRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	provSettings := newTestSettings(t, db)

	// Seed some test data
	now := time.Now().UTC().Format(time.RFC3339)
	db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES ('tables.path', 'overrides.yaml', ?)`, now)
	if err := provSettings.SetCredential(ctx, provider.NameLastFM, provider.FieldAPIKey, "lastfm-key-123"); err != nil {
		t.Fatalf("seeding lastfm key: %v", err)
	}
	if err := provSettings.SetCredential(ctx, provider.NameSpotify, provider.FieldClientID, "spotify-id"); err != nil {
		t.Fatalf("seeding spotify id: %v", err)
	}
	if err := provSettings.SetCredential(ctx, provider.NameSpotify, provider.FieldClientSecret, "spotify-secret"); err != nil {
		t.Fatalf("seeding spotify secret: %v", err)
	}

	// Export with passphrase
	svc := NewService(db, provSettings)
	passphrase := "test-export-passphrase"
	envelope, err := svc.Export(ctx, passphrase)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if envelope.Version != "1.0" {
		t.Errorf("expected version 1.0, got %s", envelope.Version)
	}
	if envelope.Data == "" {
		t.Error("expected non-empty encrypted data")
	}
	if envelope.Salt == "" {
		t.Error("expected non-empty salt")
	}

	// Set up a fresh DB to import into (different instance, different
	// at-rest encryption key)
	db2 := setupTestDB(t)
	provSettings2 := newTestSettings(t, db2)
	svc2 := NewService(db2, provSettings2)

	result, err := svc2.Import(ctx, envelope, passphrase)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	// Only the one plain setting travels in the settings map; the
	// provider.* rows are instance-specific and must not be copied raw.
	if result.Settings != 1 {
		t.Errorf("expected 1 setting imported, got %d", result.Settings)
	}
	if result.Credentials != 3 {
		t.Errorf("expected 3 credentials imported, got %d", result.Credentials)
	}

	var testVal string
	db2.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'tables.path'`).Scan(&testVal)
	if testVal != "overrides.yaml" {
		t.Errorf("expected overrides.yaml, got %s", testVal)
	}

	// The credentials must decrypt under the second instance's key.
	key, err := provSettings2.GetCredential(ctx, provider.NameLastFM, provider.FieldAPIKey)
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if key != "lastfm-key-123" {
		t.Errorf("lastfm key = %q", key)
	}
	secret, err := provSettings2.GetCredential(ctx, provider.NameSpotify, provider.FieldClientSecret)
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if secret != "spotify-secret" {
		t.Errorf("spotify secret = %q", secret)
	}

	// The stored ciphertexts differ between instances even though the
	// plaintext matches.
	var raw1, raw2 string
	db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'provider.lastfm.api_key'`).Scan(&raw1)
	db2.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'provider.lastfm.api_key'`).Scan(&raw2)
	if raw1 == "" || raw2 == "" {
		t.Fatal("expected encrypted credential rows in both instances")
	}
	if raw1 == raw2 {
		t.Error("credential ciphertext should differ across instances")
	}
}

func TestImport_CorruptedData(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, newTestSettings(t, db))

	env := &Envelope{
		Version: "1.0",
		Salt:    "AAAAAAAAAAAAAAAAAAAAAA==",
		Data:    "not-valid-base64-encrypted-data",
	}

	if _, err := svc.Import(context.Background(), env, "some-passphrase"); err == nil {
		t.Error("expected error for corrupted data")
	}
}

func TestImport_WrongPassphrase(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db, newTestSettings(t, db))

	db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES ('x', 'y', datetime('now'))`)

	envelope, err := svc.Export(ctx, "correct-passphrase")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	db2 := setupTestDB(t)
	svc2 := NewService(db2, newTestSettings(t, db2))

	if _, err := svc2.Import(ctx, envelope, "wrong-passphrase"); err == nil {
		t.Error("expected error when importing with wrong passphrase")
	}
}

func TestImport_EmptyData(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, newTestSettings(t, db))

	env := &Envelope{Version: "1.0", Data: ""}
	if _, err := svc.Import(context.Background(), env, "any-passphrase"); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestImport_Reimport(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	provSettings := newTestSettings(t, db)
	svc := NewService(db, provSettings)

	if err := provSettings.SetCredential(ctx, provider.NameLastFM, provider.FieldAPIKey, "key1"); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	passphrase := "upsert-test"
	envelope, err := svc.Export(ctx, passphrase)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Importing into the same instance upserts rather than duplicating.
	if _, err := svc.Import(ctx, envelope, passphrase); err != nil {
		t.Fatalf("Import: %v", err)
	}

	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings WHERE key = 'provider.lastfm.api_key'`).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 credential row after reimport, got %d", count)
	}
	key, err := provSettings.GetCredential(ctx, provider.NameLastFM, provider.FieldAPIKey)
	if err != nil || key != "key1" {
		t.Errorf("key = %q, err = %v", key, err)
	}
}

func TestEnvelope_JSON(t *testing.T) {
	env := Envelope{
		Version:    "1.0",
		AppVersion: "0.3.0",
		CreatedAt:  "2026-01-01T00:00:00Z",
		Salt:       "c29tZS1zYWx0",
		Data:       "encrypted-data",
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshaling: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshaling: %v", err)
	}
	if decoded.Version != "1.0" {
		t.Errorf("expected 1.0, got %s", decoded.Version)
	}
	if decoded.Salt != "c29tZS1zYWx0" {
		t.Errorf("expected salt preserved, got %s", decoded.Salt)
	}
}

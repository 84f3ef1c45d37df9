package provider

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sydlexius/confluence/internal/encryption"
)

// Credential field names. Last.fm and MusicBrainz use a single API key;
// Spotify needs a client id and secret for its token flow.
const (
	FieldAPIKey       = "api_key"
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
)

// SettingsService manages provider credentials in the settings
// key-value table. Values are encrypted at rest.
type SettingsService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db *sql.DB, encryptor *encryption.Encryptor) *SettingsService {
	return &SettingsService{db: db, encryptor: encryptor}
}

// credentialSettingKey returns the settings table key for one provider
// credential field.
func credentialSettingKey(name ProviderName, field string) string {
	return fmt.Sprintf("provider.%s.%s", name, field)
}

// keyStatusSettingKey returns the settings table key for a provider's
// credential test status.
func keyStatusSettingKey(name ProviderName) string {
	return fmt.Sprintf("provider.%s.key_status", name)
}

// ctxKeyOverride is the context key for per-request credential
// overrides. This lets the keys command inject an unsaved credential so
// providers read it during TestConnection without persisting first.
type ctxKeyOverride struct{}

type overrideKey struct {
	name  ProviderName
	field string
}

// WithCredentialOverride returns a child context that overrides the
// stored credential for the named provider field. GetCredential returns
// this value instead of querying the database.
func WithCredentialOverride(ctx context.Context, name ProviderName, field, value string) context.Context {
	parent, _ := ctx.Value(ctxKeyOverride{}).(map[overrideKey]string)

	// Always copy so a parent context's map is never mutated.
	overrides := make(map[overrideKey]string, len(parent)+1)
	for k, v := range parent {
		overrides[k] = v
	}
	overrides[overrideKey{name, field}] = value
	return context.WithValue(ctx, ctxKeyOverride{}, overrides)
}

// GetCredential retrieves and decrypts one credential field for a
// provider. Returns empty string if not configured.
func (s *SettingsService) GetCredential(ctx context.Context, name ProviderName, field string) (string, error) {
	if overrides, ok := ctx.Value(ctxKeyOverride{}).(map[overrideKey]string); ok {
		if v, found := overrides[overrideKey{name, field}]; found {
			return v, nil
		}
	}

	key := credentialSettingKey(name, field)
	var encrypted string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s for %s: %w", field, name, err)
	}
	plaintext, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting %s for %s: %w", field, name, err)
	}
	return plaintext, nil
}

// GetAPIKey retrieves the single API key credential for a provider.
func (s *SettingsService) GetAPIKey(ctx context.Context, name ProviderName) (string, error) {
	return s.GetCredential(ctx, name, FieldAPIKey)
}

// SetCredential encrypts and stores one credential field for a
// provider. The upsert and status clear run in a single transaction so
// the test status never goes stale if either write fails.
func (s *SettingsService) SetCredential(ctx context.Context, name ProviderName, field, value string) error {
	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting %s for %s: %w", field, name, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit
	key := credentialSettingKey(name, field)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
		key, encrypted, encrypted,
	); err != nil {
		return fmt.Errorf("storing %s for %s: %w", field, name, err)
	}
	// Clear stale status so the credential shows as "untested" until
	// re-verified.
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", keyStatusSettingKey(name)); err != nil {
		return fmt.Errorf("clearing key status for %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s for %s: %w", field, name, err)
	}
	return nil
}

// DeleteCredentials removes all credential fields and the test status
// for a provider in a single transaction.
func (s *SettingsService) DeleteCredentials(ctx context.Context, name ProviderName) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit
	for _, field := range credentialFields(name) {
		key := credentialSettingKey(name, field)
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
			return fmt.Errorf("deleting %s for %s: %w", field, name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", keyStatusSettingKey(name)); err != nil {
		return fmt.Errorf("clearing key status for %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete for %s: %w", name, err)
	}
	return nil
}

// SetKeyStatus persists the test result status ("ok", "invalid") for a
// provider's credentials. An empty string deletes the status row,
// reverting to "untested".
func (s *SettingsService) SetKeyStatus(ctx context.Context, name ProviderName, status string) error {
	key := keyStatusSettingKey(name)
	if status == "" {
		_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
		if err != nil {
			return fmt.Errorf("clearing key status for %s: %w", name, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
		key, status, status,
	)
	if err != nil {
		return fmt.Errorf("storing key status for %s: %w", name, err)
	}
	return nil
}

// GetKeyStatus returns the persisted test status for a provider's
// credentials. Returns empty string if no status is stored.
func (s *SettingsService) GetKeyStatus(ctx context.Context, name ProviderName) (string, error) {
	key := keyStatusSettingKey(name)
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading key status for %s: %w", name, err)
	}
	return value, nil
}

// HasCredentials checks whether all required credential fields are
// configured for a provider.
func (s *SettingsService) HasCredentials(ctx context.Context, name ProviderName) (bool, error) {
	for _, field := range credentialFields(name) {
		key := credentialSettingKey(name, field)
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings WHERE key = ?", key).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("checking %s for %s: %w", field, name, err)
		}
		if count == 0 {
			return false, nil
		}
	}
	return true, nil
}

// KeyStatus describes the credential configuration state for a
// provider.
type KeyStatus struct {
	Name        ProviderName   `json:"name"`
	DisplayName string         `json:"display_name"`
	RequiresKey bool           `json:"requires_key"`
	HasKey      bool           `json:"has_key"`
	Status      string         `json:"status"` // "ok", "invalid", "untested", "not_required", "unconfigured"
	AccessTier  AccessTier     `json:"access_tier"`
	HelpURL     string         `json:"help_url,omitempty"`
	RateLimit   *RateLimitInfo `json:"rate_limit,omitempty"`
}

// ListKeyStatuses returns the credential status for all known
// providers.
func (s *SettingsService) ListKeyStatuses(ctx context.Context) ([]KeyStatus, error) {
	caps := Capabilities()
	var statuses []KeyStatus
	for _, name := range AllProviderNames() {
		requiresKey := providerRequiresKey(name)
		hasKey, err := s.HasCredentials(ctx, name)
		if err != nil {
			return nil, err
		}
		status := "unconfigured"
		switch {
		case !requiresKey:
			status = "not_required"
		case hasKey:
			status = "untested"
		}
		if hasKey && requiresKey {
			persisted, err := s.GetKeyStatus(ctx, name)
			if err != nil {
				return nil, err
			}
			if persisted != "" {
				status = persisted
			}
		}
		capability := caps[name]
		statuses = append(statuses, KeyStatus{
			Name:        name,
			DisplayName: name.DisplayName(),
			RequiresKey: requiresKey,
			HasKey:      hasKey,
			Status:      status,
			AccessTier:  capability.Tier,
			HelpURL:     capability.HelpURL,
			RateLimit:   capability.RateLimit,
		})
	}
	return statuses, nil
}

// AvailableProviderNames returns the set of provider names that are
// configured (either they do not require credentials, or they have them
// stored). Unconfigured providers are excluded so callers can skip them
// without producing noisy ErrAuthRequired warnings.
func (s *SettingsService) AvailableProviderNames(ctx context.Context) (map[ProviderName]bool, error) {
	available := make(map[ProviderName]bool)
	for _, name := range AllProviderNames() {
		if !providerRequiresKey(name) {
			available[name] = true
			continue
		}
		hasKey, err := s.HasCredentials(ctx, name)
		if err != nil {
			return nil, err
		}
		if hasKey {
			available[name] = true
		}
	}
	return available, nil
}

// providerRequiresKey returns whether a provider needs credentials.
func providerRequiresKey(name ProviderName) bool {
	return name != NameMusicBrainz
}

// credentialFields returns the credential field names a provider needs.
func credentialFields(name ProviderName) []string {
	if name == NameSpotify {
		return []string{FieldClientID, FieldClientSecret}
	}
	return []string{FieldAPIKey}
}

// CredentialFields returns the credential field names a provider needs.
func CredentialFields(name ProviderName) []string {
	return credentialFields(name)
}

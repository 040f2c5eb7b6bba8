package provider

import (
	"encoding/json"
	"os"

	"github.com/wopr-network/wopr/internal/config"
)

// Credential is the persisted, per-provider secret record.
type Credential struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// CredentialStore loads and caches credentials keyed by provider id. A
// missing file falls back to the provider's well-known environment
// variable (config.EnvCredential), never the other way around: an
// explicit credential file always wins over the ambient environment.
type CredentialStore struct {
	paths *config.Paths
	cache map[string]Credential
}

// NewCredentialStore returns an empty store; call LoadAll to populate the
// cache from disk at startup.
func NewCredentialStore(paths *config.Paths) *CredentialStore {
	return &CredentialStore{paths: paths, cache: make(map[string]Credential)}
}

// LoadAll reads every credential file under the credentials dir that is
// already known to the caller (providerIDs) into the in-memory cache.
func (s *CredentialStore) LoadAll(providerIDs []string) error {
	for _, id := range providerIDs {
		if _, err := s.Get(id); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the credential for providerID, reading it from disk on
// first access and caching the result. If no credential file exists, it
// falls back to the provider's well-known environment variable.
func (s *CredentialStore) Get(providerID string) (Credential, error) {
	if cred, ok := s.cache[providerID]; ok {
		return cred, nil
	}

	data, err := os.ReadFile(s.paths.Credential(providerID))
	if err != nil {
		if !os.IsNotExist(err) {
			return Credential{}, err
		}
		cred := Credential{APIKey: config.EnvCredential(providerID)}
		s.cache[providerID] = cred
		return cred, nil
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, err
	}
	s.cache[providerID] = cred
	return cred, nil
}

// Set writes a credential to disk and updates the cache.
func (s *CredentialStore) Set(providerID string, cred Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	path := s.paths.Credential(providerID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	s.cache[providerID] = cred
	return nil
}

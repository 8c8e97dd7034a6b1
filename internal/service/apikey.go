package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nsharda/edge-gateway/internal/models"
)

const (
	keyPrefix   = "gw_live_"
	defaultTier = "free"
)

var ErrKeyNotFound = errors.New("API key not found")

// APIKeyService holds the credential registry. Credentials are never deleted,
// only revoked, so historic ids stay resolvable for audit. The secret index
// gives O(1) authentication; both indexes stay consistent under revocation.
type APIKeyService struct {
	mu       sync.RWMutex
	keys     []*models.Credential // creation order
	byID     map[string]*models.Credential
	bySecret map[string]*models.Credential
	now      func() time.Time
}

func NewAPIKeyService() *APIKeyService {
	return &APIKeyService{
		byID:     make(map[string]*models.Credential),
		bySecret: make(map[string]*models.Credential),
		now:      time.Now,
	}
}

func (s *APIKeyService) Create(name, tier string) (models.Credential, error) {
	if tier == "" {
		tier = defaultTier
	}

	secretBytes := make([]byte, 16)
	if _, err := rand.Read(secretBytes); err != nil {
		return models.Credential{}, fmt.Errorf("failed to generate API key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := &models.Credential{
		ID:        fmt.Sprintf("key_%03d", len(s.keys)+1),
		Secret:    keyPrefix + hex.EncodeToString(secretBytes),
		Name:      name,
		Tier:      tier,
		CreatedAt: s.now(),
		Active:    true,
	}

	s.keys = append(s.keys, key)
	s.byID[key.ID] = key
	s.bySecret[key.Secret] = key

	return *key, nil
}

// Authenticate resolves a candidate secret to its credential. Revoked
// credentials are indistinguishable from unknown ones.
func (s *APIKeyService) Authenticate(secret string) (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.bySecret[secret]
	if !ok || !key.Active {
		return models.Credential{}, false
	}
	return *key, true
}

func (s *APIKeyService) Revoke(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[id]
	if !ok {
		return ErrKeyNotFound
	}

	key.Active = false
	return nil
}

func (s *APIKeyService) List() []models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Credential, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, *key)
	}
	return out
}

func (s *APIKeyService) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, key := range s.keys {
		if key.Active {
			count++
		}
	}
	return count
}

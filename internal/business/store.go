package business

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Store keeps settings as JSON in Redis plus a phone-number-id index.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new settings store.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("business: redis client required")
	}
	return &Store{redis: redisClient}
}

func settingsKey(ownerID string) string {
	return fmt.Sprintf("business:settings:%s", ownerID)
}

func phoneKey(phoneNumberID string) string {
	return fmt.Sprintf("business:phone:%s", phoneNumberID)
}

// Get retrieves settings, returning defaults if none were saved.
func (s *Store) Get(ctx context.Context, ownerID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, settingsKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultSettings(ownerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("business: get settings: %w", err)
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("business: unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Set saves settings and indexes the phone number id.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	if settings == nil || strings.TrimSpace(settings.OwnerID) == "" {
		return errors.New("business: owner id required")
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("business: marshal settings: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, settingsKey(settings.OwnerID), data, 0)
	if id := strings.TrimSpace(settings.PhoneNumberID); id != "" {
		pipe.Set(ctx, phoneKey(id), settings.OwnerID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("business: set settings: %w", err)
	}
	return nil
}

// OwnerForPhoneNumber resolves the business that owns a WhatsApp phone number id.
func (s *Store) OwnerForPhoneNumber(ctx context.Context, phoneNumberID string) (string, error) {
	ownerID, err := s.redis.Get(ctx, phoneKey(phoneNumberID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownPhoneNumber
	}
	if err != nil {
		return "", fmt.Errorf("business: resolve phone number: %w", err)
	}
	return ownerID, nil
}

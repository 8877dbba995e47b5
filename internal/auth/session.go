// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const (
	// DefaultSessionTTL is how long a session's token pair is kept.
	DefaultSessionTTL = 30 * 24 * time.Hour

	// keyPrefix namespaces session keys in Redis.
	keyPrefix = "triage:session:"
)

// TokenStore keeps OAuth tokens in Redis keyed by session ID.
type TokenStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTokenStore creates a Redis-backed token store. A non-positive ttl
// selects DefaultSessionTTL.
func NewTokenStore(rdb *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenStore{rdb: rdb, ttl: ttl}
}

// TTL returns how long saved sessions live.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Save stores tok for sessionID, resetting the TTL.
func (s *TokenStore) Save(ctx context.Context, sessionID string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

// Load returns the token for sessionID, or ErrMissingToken.
func (s *TokenStore) Load(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	if sessionID == "" {
		return nil, ErrMissingToken
	}
	data, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMissingToken
	}
	if err != nil {
		return nil, fmt.Errorf("load session token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode session token: %w", err)
	}
	return &tok, nil
}


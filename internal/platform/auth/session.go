package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	UserID    string `json:"uid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// SessionStore tracks live logins so tokens can be revoked before they expire.
type SessionStore interface {
	Create(ctx context.Context, sid, userID string, ttl time.Duration) error
	Get(ctx context.Context, sid string) (*Session, error)
	Delete(ctx context.Context, sid string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	RevokeOthers(ctx context.Context, userID, keepSID string) error
}

type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func sessKey(sid string) string     { return fmt.Sprintf("eb:sess:%s", sid) }
func userSetKey(uid string) string { return fmt.Sprintf("eb:user_sessions:%s", uid) }

func (s *RedisSessionStore) Create(ctx context.Context, sid, userID string, ttl time.Duration) error {
	now := time.Now()
	b, err := json.Marshal(Session{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessKey(sid), b, ttl)
	pipe.SAdd(ctx, userSetKey(userID), sid)
	pipe.Expire(ctx, userSetKey(userID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) Get(ctx context.Context, sid string) (*Session, error) {
	b, err := s.rdb.Get(ctx, sessKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sid string) error {
	sess, err := s.Get(ctx, sid)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessKey(sid))
	if sess != nil {
		pipe.SRem(ctx, userSetKey(sess.UserID), sid)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.RevokeOthers(ctx, userID, "")
}

// RevokeOthers drops every session of the user except keepSID.
func (s *RedisSessionStore) RevokeOthers(ctx context.Context, userID, keepSID string) error {
	sids, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range sids {
		if sid == keepSID {
			continue
		}
		pipe.Del(ctx, sessKey(sid))
		pipe.SRem(ctx, userSetKey(userID), sid)
	}
	if keepSID == "" {
		pipe.Del(ctx, userSetKey(userID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/bank-support/internal/domain/support"
)

// releaseScript deletes the desk key only when it is held by ARGV[1].
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ValkeyStore persists sessions as JSON strings with a sliding TTL and keeps
// the operator desk in a single SET NX key, so several bot replicas share it.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore constructs the store. ttl <= 0 keeps sessions forever.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyStore {
	if prefix == "" {
		prefix = "support"
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ValkeyStore) Get(ctx context.Context, userID int64) (support.Session, bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.sessionKey(userID)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return support.Session{}, false, nil
		}
		return support.Session{}, false, err
	}
	var session support.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return support.Session{}, false, fmt.Errorf("decode session %d: %w", userID, err)
	}
	return session, true, nil
}

func (s *ValkeyStore) Save(ctx context.Context, session support.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.sessionKey(session.UserID)).Value(string(payload))
	var cmd valkey.Completed
	if s.ttl > 0 {
		cmd = builder.Ex(s.ttlOrSecond()).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// Acquire takes the desk for userID; it is re-entrant for the holder.
func (s *ValkeyStore) Acquire(ctx context.Context, userID int64) (bool, error) {
	holder := strconv.FormatInt(userID, 10)
	builder := s.client.B().Set().Key(s.deskKey()).Value(holder).Nx()
	var cmd valkey.Completed
	if s.ttl > 0 {
		cmd = builder.Ex(s.ttlOrSecond()).Build()
	} else {
		cmd = builder.Build()
	}
	err := s.client.Do(ctx, cmd).Error()
	if err == nil {
		return true, nil
	}
	if !valkey.IsValkeyNil(err) {
		return false, err
	}
	current, err := s.client.Do(ctx, s.client.B().Get().Key(s.deskKey()).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			// released between SET and GET
			return s.Acquire(ctx, userID)
		}
		return false, err
	}
	return current == holder, nil
}

func (s *ValkeyStore) Release(ctx context.Context, userID int64) error {
	holder := strconv.FormatInt(userID, 10)
	return releaseScript.Exec(ctx, s.client, []string{s.deskKey()}, []string{holder}).Error()
}

func (s *ValkeyStore) ttlOrSecond() time.Duration {
	if s.ttl < time.Second {
		return time.Second
	}
	return s.ttl
}

func (s *ValkeyStore) sessionKey(userID int64) string {
	return fmt.Sprintf("%s:session:%d", s.prefix, userID)
}

func (s *ValkeyStore) deskKey() string {
	return s.prefix + ":operator_desk"
}

var (
	_ support.SessionStore = (*ValkeyStore)(nil)
	_ support.OperatorDesk = (*ValkeyStore)(nil)
)

package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// sessionKV is the slice of nats.KeyValue the store uses.
type sessionKV interface {
	Get(key string) (nats.KeyValueEntry, error)
	Create(key string, value []byte) (uint64, error)
	Update(key string, value []byte, last uint64) (uint64, error)
}

// NatsStore persists sessions in a NATS JetStream key-value bucket so
// conversations survive process restarts. Per-session linearizability comes
// from compare-and-swap on the entry revision; different sessions live under
// different keys and never contend.
type NatsStore struct {
	kv sessionKV
}

// casAttempts bounds the optimistic retry loop under write contention.
const casAttempts = 16

// NewNatsStore binds to (or creates) the named KV bucket.
func NewNatsStore(nc *nats.Conn, bucket string) (*NatsStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("memory: jetstream: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	}
	if err != nil {
		return nil, fmt.Errorf("memory: kv bucket %s: %w", bucket, err)
	}
	return &NatsStore{kv: kv}, nil
}

// sessionKey hashes the opaque caller-supplied session ID into a KV-safe key.
func sessionKey(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return "session." + hex.EncodeToString(sum[:16])
}

// Get implements Store.
func (s *NatsStore) Get(_ context.Context, sessionID string) (Session, error) {
	entry, err := s.kv.Get(sessionKey(sessionID))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return Session{ID: sessionID, Slots: EmptySlots()}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("memory: kv get: %w", err)
	}
	return decodeSession(sessionID, entry.Value())
}

// Append implements Store.
func (s *NatsStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	return s.update(ctx, sessionID, func(sess *Session) {
		sess.Turns = trimTurns(append(sess.Turns, turns...))
	})
}

// UpdateSlots implements Store.
func (s *NatsStore) UpdateSlots(ctx context.Context, sessionID string, update Slots) error {
	return s.update(ctx, sessionID, func(sess *Session) {
		sess.Slots = sess.Slots.Merge(update)
	})
}

// Clear implements Store.
func (s *NatsStore) Clear(ctx context.Context, sessionID string) error {
	return s.update(ctx, sessionID, func(sess *Session) {
		sess.Turns = nil
		sess.Slots = EmptySlots()
	})
}

// update runs a read-modify-write with revision CAS. Either the whole
// mutation lands or nothing does; a lost race re-reads and retries.
func (s *NatsStore) update(ctx context.Context, sessionID string, mutate func(*Session)) error {
	key := sessionKey(sessionID)

	for attempt := 0; attempt < casAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, err := s.kv.Get(key)
		switch {
		case errors.Is(err, nats.ErrKeyNotFound):
			sess := Session{ID: sessionID, Slots: EmptySlots()}
			mutate(&sess)
			data, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("memory: encode session: %w", err)
			}
			if _, err = s.kv.Create(key, data); err == nil {
				return nil
			} else if !errors.Is(err, nats.ErrKeyExists) {
				return fmt.Errorf("memory: kv create: %w", err)
			}
			continue // someone created it first, re-read

		case err != nil:
			return fmt.Errorf("memory: kv get: %w", err)
		}

		sess, err := decodeSession(sessionID, entry.Value())
		if err != nil {
			return err
		}
		mutate(&sess)
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("memory: encode session: %w", err)
		}
		_, err = s.kv.Update(key, data, entry.Revision())
		if err == nil {
			return nil
		}
		// Revision conflict: another writer won, retry from the new state.
	}
	return fmt.Errorf("memory: session %s: too much write contention", sessionID)
}

func decodeSession(sessionID string, data []byte) (Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("memory: decode session: %w", err)
	}
	sess.ID = sessionID
	if sess.Slots.DoorCategory == "" {
		sess.Slots.DoorCategory = EmptySlots().DoorCategory
	}
	if sess.Slots.DoorType == "" {
		sess.Slots.DoorType = EmptySlots().DoorType
	}
	return sess, nil
}

package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scorevc/internal/eth"
	"scorevc/internal/linkage/models"
	"scorevc/pkg/domain"
	"scorevc/pkg/platform/sentinel"
)

const (
	principalKeyPrefix = "linkage:principal:"
	addressKeyPrefix   = "linkage:address:"

	// maxWatchRetries bounds optimistic retries when a concurrent writer
	// touches either key between WATCH and EXEC.
	maxWatchRetries = 5
)

// RedisStore keeps a hash per principal and an owner key per address hash.
// Link uses WATCH/MULTI over both keys so the check-then-write is atomic.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func principalKey(p domain.Principal) string {
	return principalKeyPrefix + hex.EncodeToString(p.Bytes())
}

func addressKey(h eth.AddressHash) string {
	return addressKeyPrefix + h.Hex()
}

func (s *RedisStore) Link(ctx context.Context, principal domain.Principal, addressHash eth.AddressHash, score float64, now time.Time) (*models.Link, error) {
	pKey := principalKey(principal)
	aKey := addressKey(addressHash)

	var result *models.Link
	txf := func(tx *redis.Tx) error {
		existing, err := readLink(ctx, tx, pKey)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		owner, err := tx.Get(ctx, aKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("get address owner: %w", err)
		}
		principalLinked := existing != nil
		addressLinked := err == nil

		link := models.Link{
			Principal:   principal,
			AddressHash: addressHash,
			Score:       score,
			LinkedAt:    now,
			UpdatedAt:   now,
		}
		switch {
		case principalLinked && addressLinked:
			if !existing.Matches(principal, addressHash) || string(owner) != string(principal.Bytes()) {
				return sentinel.ErrConflict
			}
			link.LinkedAt = existing.LinkedAt
		case principalLinked || addressLinked:
			return sentinel.ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, pKey,
				"address_hash", addressHash.Hex(),
				"score", strconv.FormatFloat(score, 'g', -1, 64),
				"linked_at", link.LinkedAt.UnixNano(),
				"updated_at", now.UnixNano(),
			)
			pipe.Set(ctx, aKey, principal.Bytes(), 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &link
		return nil
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, pKey, aKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, err
			}
			return nil, fmt.Errorf("link transaction: %w", err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("link transaction: %w", sentinel.ErrUnavailable)
}

func (s *RedisStore) Get(ctx context.Context, principal domain.Principal) (*models.Link, error) {
	link, err := readLink(ctx, s.client, principalKey(principal))
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *RedisStore) Score(ctx context.Context, principal domain.Principal) (float64, error) {
	link, err := s.Get(ctx, principal)
	if err != nil {
		return 0, err
	}
	return link.Score, nil
}

func (s *RedisStore) PrincipalByAddress(ctx context.Context, addressHash eth.AddressHash) (domain.Principal, error) {
	raw, err := s.client.Get(ctx, addressKey(addressHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Principal{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Principal{}, fmt.Errorf("get address owner: %w", err)
	}
	return domain.PrincipalFromBytes(raw)
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readLink(ctx context.Context, c hashReader, key string) (*models.Link, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}

	raw, err := hex.DecodeString(key[len(principalKeyPrefix):])
	if err != nil {
		return nil, fmt.Errorf("link key %q: %w", key, err)
	}
	principal, err := domain.PrincipalFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("link key %q: %w", key, err)
	}
	hash, err := hex.DecodeString(fields["address_hash"])
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("link %q has a malformed address hash", key)
	}
	score, err := strconv.ParseFloat(fields["score"], 64)
	if err != nil {
		return nil, fmt.Errorf("link %q score: %w", key, err)
	}
	linkedAt, err := strconv.ParseInt(fields["linked_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("link %q linked_at: %w", key, err)
	}
	updatedAt, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("link %q updated_at: %w", key, err)
	}

	link := &models.Link{
		Principal: principal,
		Score:     score,
		LinkedAt:  time.Unix(0, linkedAt).UTC(),
		UpdatedAt: time.Unix(0, updatedAt).UTC(),
	}
	copy(link.AddressHash[:], hash)
	return link, nil
}

// Package redisstore keeps the position ledger as a single JSON document in
// Redis, replaced atomically with one SET.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"swingTrader/internal/domain"
	"swingTrader/internal/ports"
)

// DefaultKey is used when no key is configured.
const DefaultKey = "swingtrader:ledger"

const documentVersion = 1

type document struct {
	Version int                   `json:"version"`
	Active  []*domain.Position    `json:"active"`
	Closed  []*domain.ClosedTrade `json:"closed"`
}

// Ledger implements ports.LedgerStore on a Redis key.
type Ledger struct {
	client redis.Cmdable
	key    string
	logger ports.Logger
}

// NewClient connects to addr and verifies the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewLedger creates a ledger stored under key.
func NewLedger(client redis.Cmdable, key string, logger ports.Logger) *Ledger {
	if key == "" {
		key = DefaultKey
	}
	return &Ledger{client: client, key: key, logger: logger}
}

// Load fetches and decodes the ledger. An absent key is an empty ledger.
func (l *Ledger) Load(ctx context.Context) (*domain.Ledger, error) {
	raw, err := l.client.Get(ctx, l.key).Bytes()
	if errors.Is(err, redis.Nil) {
		l.logger.Debug(ctx, "No ledger stored yet", map[string]interface{}{"key": l.key})
		return domain.NewLedger(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %v: %w", l.key, err, ports.ErrQueryFailed)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %v: %w", l.key, err, ports.ErrLedgerCorrupt)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported ledger version %d: %w", doc.Version, ports.ErrLedgerCorrupt)
	}

	ledger := domain.NewLedger()
	ledger.Active = append(ledger.Active, doc.Active...)
	ledger.Closed = append(ledger.Closed, doc.Closed...)
	return ledger, nil
}

// Save replaces the stored ledger.
func (l *Ledger) Save(ctx context.Context, ledger *domain.Ledger) error {
	raw, err := encode(ledger)
	if err != nil {
		return err
	}
	if err := l.client.Set(ctx, l.key, raw, 0).Err(); err != nil {
		err = fmt.Errorf("failed to set %s: %v: %w", l.key, err, ports.ErrUpdateFailed)
		l.logger.Error(ctx, err, "Ledger save failed")
		return err
	}
	l.logger.Info(ctx, "Ledger saved", map[string]interface{}{"key": l.key, "active": len(ledger.Active), "closed": len(ledger.Closed)})
	return nil
}

func encode(ledger *domain.Ledger) (string, error) {
	doc := document{Version: documentVersion, Active: ledger.Active, Closed: ledger.Closed}
	if doc.Active == nil {
		doc.Active = []*domain.Position{}
	}
	if doc.Closed == nil {
		doc.Closed = []*domain.ClosedTrade{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode ledger: %w", err)
	}
	return string(raw), nil
}

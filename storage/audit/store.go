package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"yieldpool/core"
	"yieldpool/core/types"
	"yieldpool/crypto"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ErrSequenceConflict is returned when a receipt reuses a sequence number
// already archived under a different digest.
var ErrSequenceConflict = errors.New("audit: sequence already archived with a different digest")

// Query filters archived receipts. Zero values match everything.
type Query struct {
	AfterSequence uint64
	Limit         int
	Operation     string
	Caller        crypto.Address
	EventType     string
}

// Store archives receipts published by the node.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the archive selected by dsn. postgres:// and
// postgresql:// URLs use Postgres; anything else is handed to sqlite.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("audit: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	return New(db)
}

// New wraps an open database, migrating the schema first.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

// SetLogger overrides the logger used for archive diagnostics.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Publish archives the receipt. Republishing an archived receipt is a no-op.
func (s *Store) Publish(ctx context.Context, receipt *core.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("audit: nil receipt")
	}
	record, err := toRecord(receipt)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ReceiptRecord
		err := tx.Where("sequence = ?", receipt.Sequence).Limit(1).Find(&existing).Error
		if err != nil {
			return fmt.Errorf("audit: lookup sequence %d: %w", receipt.Sequence, err)
		}
		if existing.Digest != "" {
			if existing.Digest == record.Digest {
				return nil
			}
			return fmt.Errorf("%w: sequence %d", ErrSequenceConflict, receipt.Sequence)
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("audit: insert sequence %d: %w", receipt.Sequence, err)
		}
		s.logger.Debug("receipt archived",
			slog.Uint64("sequence", receipt.Sequence),
			slog.String("operation", receipt.Operation))
		return nil
	})
}

// Receipts returns archived receipts in sequence order.
func (s *Store) Receipts(ctx context.Context, q Query) ([]*core.Receipt, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	tx := s.db.WithContext(ctx).Model(&ReceiptRecord{}).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("sequence > ?", q.AfterSequence)
	if op := strings.TrimSpace(q.Operation); op != "" {
		tx = tx.Where("operation = ?", op)
	}
	if !q.Caller.IsZero() {
		tx = tx.Where("caller = ?", q.Caller.Hex())
	}
	if evt := strings.TrimSpace(q.EventType); evt != "" {
		tx = tx.Where("id IN (?)", s.db.Model(&EventRecord{}).Select("receipt_id").Where("type = ?", evt))
	}
	var records []ReceiptRecord
	if err := tx.Order("sequence ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("audit: query receipts: %w", err)
	}
	out := make([]*core.Receipt, 0, len(records))
	for i := range records {
		receipt, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, receipt)
	}
	return out, nil
}

// Latest returns the highest archived sequence, or zero for an empty archive.
func (s *Store) Latest(ctx context.Context) (uint64, error) {
	var record ReceiptRecord
	err := s.db.WithContext(ctx).Order("sequence DESC").Limit(1).Find(&record).Error
	if err != nil {
		return 0, fmt.Errorf("audit: latest: %w", err)
	}
	return record.Sequence, nil
}

// Verify walks the whole archive and checks the digest chain.
func (s *Store) Verify(ctx context.Context) (int, error) {
	var (
		after uint64
		prev  *core.Receipt
		count int
	)
	for {
		batch, err := s.Receipts(ctx, Query{AfterSequence: after, Limit: maxLimit})
		if err != nil {
			return count, err
		}
		if len(batch) == 0 {
			return count, nil
		}
		chain := batch
		if prev != nil {
			chain = append([]*core.Receipt{prev}, batch...)
		}
		if err := core.VerifyChain(chain); err != nil {
			return count, fmt.Errorf("audit: %w", err)
		}
		count += len(batch)
		prev = batch[len(batch)-1]
		after = prev.Sequence
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(receipt *core.Receipt) (*ReceiptRecord, error) {
	record := &ReceiptRecord{
		ID:        receipt.ID,
		Sequence:  receipt.Sequence,
		Operation: receipt.Operation,
		Caller:    receipt.Caller.Hex(),
		Timestamp: receipt.Timestamp.UTC(),
		Prev:      receipt.Prev.Hex(),
		Digest:    receipt.Digest.Hex(),
		Events:    make([]EventRecord, 0, len(receipt.Events)),
	}
	for i, evt := range receipt.Events {
		if evt == nil {
			continue
		}
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return nil, fmt.Errorf("audit: encode %s attributes: %w", evt.Type, err)
		}
		record.Events = append(record.Events, EventRecord{
			ReceiptID:  receipt.ID,
			Position:   i,
			Type:       evt.Type,
			Attributes: string(attrs),
		})
	}
	return record, nil
}

func fromRecord(record *ReceiptRecord) (*core.Receipt, error) {
	caller, err := crypto.ParseAddress(record.Caller)
	if err != nil {
		return nil, fmt.Errorf("audit: receipt %d caller: %w", record.Sequence, err)
	}
	receipt := &core.Receipt{
		ID:        record.ID,
		Sequence:  record.Sequence,
		Operation: record.Operation,
		Caller:    caller,
		Timestamp: record.Timestamp.UTC(),
		Events:    make([]*types.Event, 0, len(record.Events)),
	}
	if err := receipt.Prev.UnmarshalText([]byte(record.Prev)); err != nil {
		return nil, fmt.Errorf("audit: receipt %d prev: %w", record.Sequence, err)
	}
	if err := receipt.Digest.UnmarshalText([]byte(record.Digest)); err != nil {
		return nil, fmt.Errorf("audit: receipt %d digest: %w", record.Sequence, err)
	}
	for _, evt := range record.Events {
		attrs := map[string]string{}
		if evt.Attributes != "" {
			if err := json.Unmarshal([]byte(evt.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("audit: receipt %d event %d: %w", record.Sequence, evt.Position, err)
			}
		}
		receipt.Events = append(receipt.Events, &types.Event{Type: evt.Type, Attributes: attrs})
	}
	return receipt, nil
}

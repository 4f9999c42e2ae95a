package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"dexther/native/dexther"
)

// ErrNotFound is returned when no receipt matches the requested digest.
var ErrNotFound = errors.New("receipts: not found")

// ReceiptRecord is the persisted form of a settlement receipt. The full
// receipt is kept as JSON next to the columns used for lookups.
type ReceiptRecord struct {
	Digest            string `gorm:"size:66;primaryKey"`
	Relayer           string `gorm:"size:42;index"`
	Initiator         string `gorm:"size:42;index"`
	Counterparty      string `gorm:"size:42;index"`
	InitiatorNonce    uint64
	CounterpartyNonce uint64
	FeeBps            uint32
	Payload           string    `gorm:"type:text;not null"`
	SettledAt         time.Time `gorm:"index"`
	CreatedAt         time.Time
}

// TableName pins the table name across drivers.
func (ReceiptRecord) TableName() string { return "dexther_receipts" }

// Store persists receipts through GORM.
type Store struct {
	db *gorm.DB
}

// Open connects to the receipts database and migrates the schema. driver is
// "sqlite" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("receipts: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("receipts: open: %w", err)
	}
	return New(db)
}

// New wraps an existing GORM handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("receipts: nil database")
	}
	if err := db.AutoMigrate(&ReceiptRecord{}); err != nil {
		return nil, fmt.Errorf("receipts: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save records a receipt. Saving the same digest twice keeps the first row.
func (s *Store) Save(ctx context.Context, receipt *dexther.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("receipts: nil receipt")
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("receipts: encode: %w", err)
	}
	record := ReceiptRecord{
		Digest:            receipt.Digest.Hex(),
		Relayer:           receipt.Relayer.Hex(),
		Initiator:         receipt.Initiator.Hex(),
		Counterparty:      receipt.Counterparty.Hex(),
		InitiatorNonce:    receipt.InitiatorNonce,
		CounterpartyNonce: receipt.CounterpartyNonce,
		FeeBps:            receipt.FeeBps,
		Payload:           string(payload),
		SettledAt:         time.Unix(receipt.SettledAt, 0).UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
}

// Get loads the receipt for digest.
func (s *Store) Get(ctx context.Context, digest common.Hash) (*dexther.Receipt, error) {
	var record ReceiptRecord
	err := s.db.WithContext(ctx).First(&record, "digest = ?", digest.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(record)
}

// ListByParty returns the most recent receipts in which party took either
// side, newest first.
func (s *Store) ListByParty(ctx context.Context, party common.Address, limit int) ([]*dexther.Receipt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []ReceiptRecord
	hex := party.Hex()
	err := s.db.WithContext(ctx).
		Where("initiator = ? OR counterparty = ?", hex, hex).
		Order("settled_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]*dexther.Receipt, 0, len(records))
	for _, record := range records {
		receipt, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, receipt)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeRecord(record ReceiptRecord) (*dexther.Receipt, error) {
	var receipt dexther.Receipt
	if err := json.Unmarshal([]byte(record.Payload), &receipt); err != nil {
		return nil, fmt.Errorf("receipts: decode %s: %w", record.Digest, err)
	}
	return &receipt, nil
}

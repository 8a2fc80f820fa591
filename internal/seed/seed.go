// Package seed loads inventory datasets into a ledger store. Existing
// records are never overwritten.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cimillas/stockledger/internal/clock"
	"github.com/cimillas/stockledger/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Seeder inserts rec if its key is absent and reports whether it wrote.
type Seeder interface {
	SeedInventory(ctx context.Context, rec domain.InventoryRecord) (bool, error)
}

// TxRunner is implemented by stores that can seed a whole dataset in one
// transaction. Without it entries are written one by one.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Entry is one dataset row. Both snake_case and camelCase counters are
// accepted; available, when present, must match on_hand - reserved.
type Entry struct {
	VariantID   string     `yaml:"variant_id"`
	LocationID  string     `yaml:"location_id"`
	OnHand      *int       `yaml:"on_hand"`
	OnHandCamel *int       `yaml:"onHand"`
	Reserved    *int       `yaml:"reserved"`
	Available   *int       `yaml:"available"`
	UpdatedAt   *time.Time `yaml:"updated_at"`
}

type dataset struct {
	Inventory []Entry `yaml:"inventory"`
}

type Result struct {
	Wrote   int
	Skipped int
}

func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads either a bare list of entries or a document with an
// "inventory" key.
func Parse(r io.Reader) ([]Entry, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]

	if root.Kind == yaml.SequenceNode {
		var entries []Entry
		if err := root.Decode(&entries); err != nil {
			return nil, fmt.Errorf("decode dataset: %w", err)
		}
		return entries, nil
	}
	var ds dataset
	if err := root.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return ds.Inventory, nil
}

// Record converts the entry, stamping now when the dataset has no timestamp.
func (e Entry) Record(now time.Time) (domain.InventoryRecord, error) {
	if e.VariantID == "" {
		return domain.InventoryRecord{}, domain.ErrVariantRequired
	}
	if e.LocationID == "" {
		return domain.InventoryRecord{}, domain.ErrLocationRequired
	}

	onHand := 0
	switch {
	case e.OnHand != nil:
		onHand = *e.OnHand
	case e.OnHandCamel != nil:
		onHand = *e.OnHandCamel
	}
	reserved := 0
	if e.Reserved != nil {
		reserved = *e.Reserved
	}
	at := now
	if e.UpdatedAt != nil {
		at = e.UpdatedAt.UTC()
	}

	rec := domain.NewInventoryRecord(e.VariantID, e.LocationID, onHand, reserved, at)
	if e.Available != nil && *e.Available != rec.Available {
		return domain.InventoryRecord{}, fmt.Errorf("inventory %s: available %d != %d - %d", rec.Key(), *e.Available, onHand, reserved)
	}
	if err := rec.Check(); err != nil {
		return domain.InventoryRecord{}, err
	}
	return rec, nil
}

type Importer struct {
	store  Seeder
	clock  clock.Clock
	logger *zap.Logger
}

func NewImporter(store Seeder, clk clock.Clock, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, clock: clk, logger: logger}
}

// Import validates every entry before writing any of them.
func (i *Importer) Import(ctx context.Context, entries []Entry) (Result, error) {
	now := i.clock.Now()
	records := make([]domain.InventoryRecord, 0, len(entries))
	for n, e := range entries {
		rec, err := e.Record(now)
		if err != nil {
			return Result{}, fmt.Errorf("entry %d: %w", n, err)
		}
		records = append(records, rec)
	}

	run := func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	}
	if tx, ok := i.store.(TxRunner); ok {
		run = tx.WithTx
	}

	var res Result
	err := run(ctx, func(ctx context.Context) error {
		res = Result{}
		for _, rec := range records {
			wrote, err := i.store.SeedInventory(ctx, rec)
			if err != nil {
				return fmt.Errorf("seed %s: %w", rec.Key(), err)
			}
			if wrote {
				res.Wrote++
				continue
			}
			res.Skipped++
			i.logger.Debug("inventory already seeded", zap.String("key", rec.Key().String()))
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	i.logger.Info("inventory seeded", zap.Int("wrote", res.Wrote), zap.Int("skipped", res.Skipped))
	return res, nil
}

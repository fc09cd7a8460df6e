package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jacostaf/tcg-ygoripper-sub000/models"
)

// BadgerStore implements PriceStore on an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logging is too chatty for a cache

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db at %s: %w", path, err)
	}
	slog.Info("price store opened", "path", path)
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Key layout:
//
//	price:{CARD}|{rarity}|{variant}  -> CacheEntry JSON
//	variant:{CARD}|{rarity}          -> VariantRecord JSON
//	set:{CODE}                       -> SetRecord JSON
func priceKey(cardNumber, rarity, variant string) []byte {
	return []byte(fmt.Sprintf("price:%s|%s|%s",
		strings.ToUpper(strings.TrimSpace(cardNumber)),
		strings.ToLower(strings.TrimSpace(rarity)),
		strings.ToLower(strings.TrimSpace(variant))))
}

func pricePrefix(cardNumber, rarity string) []byte {
	return []byte(fmt.Sprintf("price:%s|%s|",
		strings.ToUpper(strings.TrimSpace(cardNumber)),
		strings.ToLower(strings.TrimSpace(rarity))))
}

func variantKey(cardNumber, rarity string) []byte {
	return []byte(fmt.Sprintf("variant:%s|%s",
		strings.ToUpper(strings.TrimSpace(cardNumber)),
		strings.ToLower(strings.TrimSpace(rarity))))
}

func variantPrefix(cardNumber string) []byte {
	return []byte(fmt.Sprintf("variant:%s|", strings.ToUpper(strings.TrimSpace(cardNumber))))
}

func setKey(setCode string) []byte {
	return []byte("set:" + strings.ToUpper(strings.TrimSpace(setCode)))
}

// FindOne probes direct keys for each requested art-variant spelling, then
// falls back to a prefix scan when the query does not constrain the variant.
func (s *BadgerStore) FindOne(ctx context.Context, q PriceQuery) (*models.CacheEntry, error) {
	var entry *models.CacheEntry

	err := s.db.View(func(txn *badger.Txn) error {
		if len(q.ArtVariants) > 0 {
			for _, v := range q.ArtVariants {
				item, err := txn.Get(priceKey(q.CardNumber, q.CardRarity, v))
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				return item.Value(func(val []byte) error {
					return json.Unmarshal(val, &entry)
				})
			}
			return nil
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := pricePrefix(q.CardNumber, q.CardRarity)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			return it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find price entry: %w", err)
	}
	return entry, nil
}

// Upsert writes the entry under its composite key in one transaction.
func (s *BadgerStore) Upsert(ctx context.Context, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal price entry: %w", err)
	}
	key := priceKey(entry.CardNumber, entry.CardRarity, entry.ArtVariant)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("upsert price entry: %w", err)
	}
	return nil
}

// Stats scans the price keyspace and counts entries against the cutoff.
func (s *BadgerStore) Stats(ctx context.Context, freshCutoff time.Time) (models.CacheStats, error) {
	var stats models.CacheStats
	cards := make(map[string]struct{})

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("price:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry models.CacheEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return nil // skip undecodable entries, still counted below
				}
				stats.TotalEntries++
				if !entry.LastUpdated.IsZero() && entry.LastUpdated.After(freshCutoff) {
					stats.FreshEntries++
				} else {
					stats.StaleEntries++
				}
				cards[strings.ToUpper(entry.CardNumber)] = struct{}{}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	stats.UniqueCards = len(cards)
	return stats, nil
}

// SaveVariant records one known print.
func (s *BadgerStore) SaveVariant(ctx context.Context, v VariantRecord) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal variant record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(variantKey(v.SetCode, v.Rarity), data)
	})
	if err != nil {
		return fmt.Errorf("save variant record: %w", err)
	}
	return nil
}

// HasVariant scans the card's known prints and matches any requested rarity
// spelling by containment, mirroring how catalog data abbreviates names.
func (s *BadgerStore) HasVariant(ctx context.Context, cardNumber string, rarities []string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		prefix := variantPrefix(cardNumber)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stored := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			for _, r := range rarities {
				r = strings.ToLower(strings.TrimSpace(r))
				if r == "" {
					continue
				}
				if strings.Contains(stored, r) || strings.Contains(r, stored) {
					found = true
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("lookup variant: %w", err)
	}
	return found, nil
}

// SaveSet records a set code to set name mapping.
func (s *BadgerStore) SaveSet(ctx context.Context, rec SetRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal set record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(setKey(rec.SetCode), data)
	})
	if err != nil {
		return fmt.Errorf("save set record: %w", err)
	}
	return nil
}

// SetName resolves a set code to the storefront's set name.
func (s *BadgerStore) SetName(ctx context.Context, setCode string) (string, error) {
	var rec SetRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(setKey(setCode))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup set name: %w", err)
	}
	return rec.SetName, nil
}

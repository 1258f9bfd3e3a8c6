package storage

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"parking-grid/internal/parking"
)

// Storage keys. Each holds a JSON-serialized array, matching the
// two-key layout the UI kept in browser storage.
const (
	slotsKey    = "slots"
	bookingsKey = "bookings"
)

// Store persists the slot layout and the active bookings in an
// embedded badger database.
type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadSlots returns the persisted slot layout, or nil on first run.
func (s *Store) LoadSlots() ([]*parking.Slot, error) {
	var slots []*parking.Slot
	if err := s.load(slotsKey, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *Store) SaveSlots(slots []*parking.Slot) error {
	return s.save(slotsKey, slots)
}

// LoadBookings returns the persisted bookings, or nil when none were
// saved yet.
func (s *Store) LoadBookings() ([]*parking.Booking, error) {
	var bookings []*parking.Booking
	if err := s.load(bookingsKey, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Store) SaveBookings(bookings []*parking.Booking) error {
	return s.save(bookingsKey, bookings)
}

func (s *Store) load(key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	return nil
}

func (s *Store) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

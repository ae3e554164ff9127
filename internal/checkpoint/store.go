// Package checkpoint persists evolution snapshots in an append-only badger
// store, one entry per snapshot keyed by its textual timestamp. Writes are
// synchronous: a committed snapshot survives a crash, an uncommitted one is
// never observed.
package checkpoint

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rvats/qprop/internal/heom"
)

// snapshot is the wire form of a hierarchy state. complex128 has no msgpack
// encoding, so the vector travels as interleaved re/im pairs.
type snapshot struct {
	Dim    int       `msgpack:"dim"`
	N      int       `msgpack:"n"`
	Parity int       `msgpack:"parity"`
	Data   []float64 `msgpack:"data"`
}

// Store is an append-only snapshot store backed by badger with SyncWrites,
// so the durability boundary is the Put call.
type Store struct {
	db   *badger.DB
	path string
}

// Create opens a fresh store at path. The destination must not already
// exist; a collision fails with heom.ErrAlreadyExists before anything is
// written.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("checkpoint: %q: %w", path, heom.ErrAlreadyExists)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checkpoint: stat %q: %w", path, err)
	}

	db, err := badger.Open(options(path))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %q: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Open opens an existing store for reading.
func Open(path string) (*Store, error) {
	db, err := badger.Open(options(path))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %q: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func options(path string) badger.Options {
	// SyncWrites so each committed snapshot is durable at the step boundary.
	return badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLogger(nil)
}

// Record writes one snapshot under its timestamp key, committing before it
// returns. Satisfies heom.Recorder.
func (s *Store) Record(key string, st *heom.State) error {
	data := make([]float64, 2*len(st.Data))
	for i, v := range st.Data {
		data[2*i] = real(v)
		data[2*i+1] = imag(v)
	}
	raw, err := msgpack.Marshal(snapshot{
		Dim:    st.Dim,
		N:      st.N,
		Parity: int(st.Parity),
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("checkpoint: encode %q: %w", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("checkpoint: write %q: %w", key, err)
	}
	return nil
}

// Get reads back the snapshot stored under key.
func (s *Store) Get(key string) (*heom.State, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %q: %w", key, err)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %q: %w", key, err)
	}

	st := heom.NewState(snap.Dim, snap.N, heom.Parity(snap.Parity))
	for i := range st.Data {
		st.Data[i] = complex(snap.Data[2*i], snap.Data[2*i+1])
	}
	return st, nil
}

// Keys lists stored timestamp keys in increasing time order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.ParseFloat(keys[i], 64)
		b, _ := strconv.ParseFloat(keys[j], 64)
		return a < b
	})
	return keys, nil
}

func (s *Store) Close() error { return s.db.Close() }

// TimeKey formats a snapshot timestamp. Fixed-step runs use the shortest
// decimal form ("0", "0.5", "1"); ODE-grid runs always carry a decimal point
// ("0.0", "1.5").
func TimeKey(t float64, realForm bool) string {
	s := strconv.FormatFloat(t, 'g', -1, 64)
	if realForm && !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

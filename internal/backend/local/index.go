package local

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Index is the deserialized content of one on-disk index directory.
// Indexes are produced by an offline build step; this package only
// defines the container format and reads it back. Opening an index
// trusts its contents.
type Index struct {
	Manifest Manifest
	Records  []Record
}

// Manifest describes the index: which embedding model produced the
// vectors, their dimension, and optional TF-IDF statistics for querying
// without a remote embedder.
type Manifest struct {
	Model     string      `json:"model"`
	Dimension int         `json:"dimension"`
	Count     int         `json:"count"`
	CreatedAt time.Time   `json:"created_at"`
	TFIDF     *TFIDFStats `json:"tfidf,omitempty"`
}

// TFIDFStats holds the vocabulary and IDF weights computed at build time.
type TFIDFStats struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// Record is one indexed snippet with its embedding vector.
type Record struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Vector   []float64         `json:"vector"`
}

const manifestKey = "meta:manifest"

func recordKey(i int) []byte {
	// zero-padded so badger key order is insertion order
	return []byte(fmt.Sprintf("snip:%08d", i))
}

// Load opens the badger directory read-only, decodes the manifest and all
// records into memory, and closes the store.
func Load(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir).WithReadOnly(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", dir, err)
	}
	defer db.Close()

	var idx Index
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(manifestKey))
		if err != nil {
			return fmt.Errorf("index manifest: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &idx.Manifest)
		}); err != nil {
			return fmt.Errorf("decode manifest: %w", err)
		}

		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         []byte("snip:"),
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode record %s: %w", it.Item().Key(), err)
			}
			if len(rec.Vector) != idx.Manifest.Dimension {
				return fmt.Errorf("record %s: vector dimension %d, manifest says %d",
					it.Item().Key(), len(rec.Vector), idx.Manifest.Dimension)
			}
			idx.Records = append(idx.Records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// Write serializes an index into the badger directory. Used by offline
// builders and test fixtures.
func Write(dir string, idx *Index) error {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("create index at %s: %w", dir, err)
	}
	defer db.Close()

	m := idx.Manifest
	m.Count = len(idx.Records)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	manifest, err := json.Marshal(m)
	if err != nil {
		return err
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Set([]byte(manifestKey), manifest); err != nil {
		return err
	}
	for i, rec := range idx.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := wb.Set(recordKey(i), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

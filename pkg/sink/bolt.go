package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltLatestKey = "OUTPUT"

var (
	boltOutputBucket = []byte("output")
	boltRunsBucket   = []byte("runs")
)

// Bolt keeps the latest output under the OUTPUT key and every run's output
// keyed by run id.
type Bolt struct {
	name string
	db   *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(name, path string) (*Bolt, error) {
	if name == "" {
		name = "bolt"
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{boltOutputBucket, boltRunsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bolt buckets: %w", err)
	}

	return &Bolt{name: name, db: db}, nil
}

func (b *Bolt) Name() string { return b.name }

func (b *Bolt) Write(_ context.Context, out Output) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(boltOutputBucket).Put([]byte(boltLatestKey), payload); err != nil {
			return fmt.Errorf("put latest: %w", err)
		}
		if out.RunID == "" {
			return nil
		}
		if err := tx.Bucket(boltRunsBucket).Put([]byte(out.RunID), payload); err != nil {
			return fmt.Errorf("put run %s: %w", out.RunID, err)
		}
		return nil
	})
}

// Latest returns the most recently written output.
func (b *Bolt) Latest() (Output, error) {
	return b.get(boltOutputBucket, boltLatestKey)
}

// Run returns the output written for runID.
func (b *Bolt) Run(runID string) (Output, error) {
	return b.get(boltRunsBucket, runID)
}

func (b *Bolt) get(bucket []byte, key string) (Output, error) {
	var out Output
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return errors.New("no output stored under " + key)
		}
		return json.Unmarshal(v, &out)
	})
	return out, err
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

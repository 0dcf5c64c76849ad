// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	vgsql "github.com/dolthub/sparql-compiler/sql"
)

var termBucket = []byte("terms")

// BoltCache is a persistent-backed TermCache. §1 places the cache's storage
// backend outside the compiler's scope; this is a reference implementation of
// the narrow interface the compiler actually consumes, useful for a
// long-lived process that wants term resolutions to survive a restart.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (creating if necessary) a boltdb file at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(termBucket)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "initializing bolt cache bucket")
	}
	return &BoltCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

func boltKey(k vgsql.Key) []byte {
	return []byte(fmt.Sprintf("%c\x00%s", k.Kind, k.Text))
}

// GetBatch returns every requested key found in the store.
func (c *BoltCache) GetBatch(keys []vgsql.Key) (map[vgsql.Key]vgsql.TermUUID, error) {
	hits := make(map[vgsql.Key]vgsql.TermUUID, len(keys))
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(termBucket)
		for _, k := range keys {
			raw := b.Get(boltKey(k))
			if raw == nil {
				continue
			}
			id, err := vgsql.ParseTermUUID(string(raw))
			if err != nil {
				return err
			}
			hits[k] = id
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading bolt cache")
	}
	return hits, nil
}

// PutBatch stores the given key/uuid pairs.
func (c *BoltCache) PutBatch(entries map[vgsql.Key]vgsql.TermUUID) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(termBucket)
		for k, v := range entries {
			if err := b.Put(boltKey(k), []byte(v.String())); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "writing bolt cache")
	}
	return nil
}

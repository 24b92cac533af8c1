// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/Scholar/services/scholar/course"
)

// Key prefixes are versioned so a record-layout change can invalidate old
// entries by bumping the version instead of migrating them.
const (
	catalogKeyPrefix = "scholar/catalog/v1/"
	contentKeyPrefix = "scholar/content/v1/"
)

// CatalogRecord is one persisted catalog entry: the course plus the
// unit-normalized embedding of its title.
type CatalogRecord struct {
	Course course.Course
	Vector []float32
}

// ContentRecord is one persisted content entry: the chunk plus the
// unit-normalized embedding of its text.
type ContentRecord struct {
	Chunk  course.Chunk
	Vector []float32
}

// Store persists catalog and content records in an embedded BadgerDB.
//
// Description:
//
//	The index is authoritative in memory; the store exists so a restart
//	does not require re-embedding the whole corpus. All methods are
//	nil-receiver safe — a nil *Store is a valid "no persistence" mode
//	used by tests and by callers that opt out of durability.
//
// Thread Safety: Safe for concurrent use (BadgerDB transactions).
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) the Badger database at dir.
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is too chatty; we log at this layer
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening index store at %s: %w", dir, err)
	}
	slog.Info("Index store opened", "dir", dir)
	return &Store{db: db}, nil
}

// OpenInMemoryStore opens a Badger database that lives only in RAM.
// Used by tests and by deployments that opt out of durability.
func OpenInMemoryStore() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory index store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database. Safe on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveCourse upserts one catalog record. Safe on a nil Store (no-op).
func (s *Store) SaveCourse(rec CatalogRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	data, err := encodeGob(rec)
	if err != nil {
		return fmt.Errorf("encoding catalog record %q: %w", rec.Course.Title, err)
	}
	key := []byte(catalogKeyPrefix + rec.Course.Title)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("persisting catalog record %q: %w", rec.Course.Title, err)
	}
	return nil
}

// SaveChunks upserts a batch of content records in one transaction where
// possible, falling back to per-record transactions when the batch
// exceeds Badger's transaction size. Safe on a nil Store (no-op).
func (s *Store) SaveChunks(recs []ContentRecord) error {
	if s == nil || s.db == nil || len(recs) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, rec := range recs {
		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("encoding content record %q/%d: %w",
				rec.Chunk.CourseTitle, rec.Chunk.Index, err)
		}
		key := contentKey(rec.Chunk.CourseTitle, rec.Chunk.Index)
		if err := wb.Set(key, data); err != nil {
			return fmt.Errorf("batching content record %q/%d: %w",
				rec.Chunk.CourseTitle, rec.Chunk.Index, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("persisting %d content records: %w", len(recs), err)
	}
	return nil
}

// DeleteCourseChunks drops every persisted content record belonging to
// one course. Safe on a nil Store (no-op).
func (s *Store) DeleteCourseChunks(courseTitle string) error {
	if s == nil || s.db == nil {
		return nil
	}
	prefix := []byte(contentKeyPrefix + courseTitle + "/")
	if err := s.db.DropPrefix(prefix); err != nil {
		return fmt.Errorf("dropping content records for %q: %w", courseTitle, err)
	}
	return nil
}

// LoadCatalog reads every persisted catalog record, sorted by title.
// Safe on a nil Store (returns nil).
func (s *Store) LoadCatalog() ([]CatalogRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var recs []CatalogRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(catalogKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec CatalogRecord
				if err := decodeGob(val, &rec); err != nil {
					return err
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Course.Title < recs[j].Course.Title
	})
	return recs, nil
}

// LoadContent reads every persisted content record, ordered by course
// title and chunk index. Safe on a nil Store (returns nil).
func (s *Store) LoadContent() ([]ContentRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var recs []ContentRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(contentKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec ContentRecord
				if err := decodeGob(val, &rec); err != nil {
					return err
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}
	// Key order already sorts by title, then zero-padded index; the sort
	// here guards against titles where lexicographic and numeric order
	// disagree after the '/' separator.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Chunk.CourseTitle != recs[j].Chunk.CourseTitle {
			return recs[i].Chunk.CourseTitle < recs[j].Chunk.CourseTitle
		}
		return recs[i].Chunk.Index < recs[j].Chunk.Index
	})
	return recs, nil
}

// DropAll deletes every catalog and content record. Safe on a nil Store.
func (s *Store) DropAll() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.DropPrefix([]byte(catalogKeyPrefix)); err != nil {
		return fmt.Errorf("dropping catalog records: %w", err)
	}
	if err := s.db.DropPrefix([]byte(contentKeyPrefix)); err != nil {
		return fmt.Errorf("dropping content records: %w", err)
	}
	return nil
}

// contentKey builds the key for a chunk. The index is zero-padded so key
// order matches chunk order within a course.
func contentKey(courseTitle string, chunkIndex int) []byte {
	return []byte(fmt.Sprintf("%s%s/%08d", contentKeyPrefix, courseTitle, chunkIndex))
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

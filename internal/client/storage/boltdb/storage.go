// Package boltdb хранит локальное состояние консоли в одном файле bbolt:
// сессию оператора и кэш снимков топиков.
package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/sitekeeper/internal/client/storage"
)

var (
	bucketAuth      = []byte("auth")
	bucketSnapshots = []byte("snapshots")

	buckets = [][]byte{bucketAuth, bucketSnapshots}
)

// errKeyNotFound внутренний признак отсутствия ключа; методы переводят его
// в ошибку своего типа данных
var errKeyNotFound = errors.New("key not found")

// Storage implements storage.AuthStorage and storage.SnapshotCache on bbolt.
type Storage struct {
	db *bbolt.DB
}

// New opens (or creates) the console database at dbPath.
// Файл блокируется bbolt, вторая консоль с тем же файлом ждет не дольше секунды.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb %s: %w", dbPath, err)
	}

	s := &Storage{db: db}
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database; repeated calls are no-ops
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.View(fn)
}

func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(fn)
}

func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}

// putJSON сериализует value и кладет его под key
func (s *Storage) putJSON(name, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", name, key, err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// getJSON читает key в out; errKeyNotFound, если ключа нет
func (s *Storage) getJSON(name, key []byte, out any) error {
	return s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}

		// данные валидны только внутри транзакции, Unmarshal копирует их
		data := b.Get(key)
		if data == nil {
			return errKeyNotFound
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s/%s: %w", name, key, err)
		}
		return nil
	})
}

// deleteKey удаляет key; errKeyNotFound, если ключа нет
func (s *Storage) deleteKey(name, key []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		if b.Get(key) == nil {
			return errKeyNotFound
		}
		return b.Delete(key)
	})
}

// keys возвращает ключи бакета в порядке байтов
func (s *Storage) keys(name []byte) ([]string, error) {
	out := make([]string, 0)
	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// notFound подменяет errKeyNotFound на доменную ошибку
func notFound(err, replacement error) error {
	if errors.Is(err, errKeyNotFound) {
		return replacement
	}
	return err
}

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/golang/glog"
)

const (
	DefaultBoltFile = "glassfy.db"
	boltBucketName  = "GlassfyPrefs"
)

// BoltStore persists keys in a bolt file on the device
type BoltStore struct {
	bdb *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		path = DefaultBoltFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			glog.Errorf("mkdir %s, err:%s", dir, err.Error())
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		glog.Errorf("bolt.Open %s, err:%s", path, err.Error())
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketName))
		if err != nil {
			glog.Warningf("create bucket %s,err: %s", boltBucketName, err.Error())
		}
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{bdb: db}, nil
}

func (b *BoltStore) Get(key string) (string, error) {
	var value string
	err := b.bdb.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketName))
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", boltBucketName)
		}
		v := bucket.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (b *BoltStore) Set(key, value string) error {
	return b.bdb.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(boltBucketName))
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			glog.Warningf("bucket.Put %s,err: %s", boltBucketName, err.Error())
			return err
		}
		return nil
	})
}

func (b *BoltStore) Close() error {
	return b.bdb.Close()
}

package sourceinfo

import (
	"fmt"
	"os"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"
	"github.com/golang/snappy"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// DiskCacheVersion is the layout version of on-disk caches.  Caches written
// with a different major version are cleared when opened.
var DiskCacheVersion = semver.MustParse("1.0.0")

var (
	versionKey = []byte("\x00version")
	infoPrefix = "info/"
)

// DiskCache keeps info documents across runs in a badger database.  Values are
// snappy compressed.
type DiskCache struct {
	dir string
	db  *badger.DB
}

// badgerLogger sends badger messages to the ngstate log.  Badger is chatty, so
// its info messages are logged at debug level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { ngstate.Errorf(format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { ngstate.Warningf(format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { ngstate.Debugf(format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   { ngstate.Debugf(format, args...) }

// OpenDiskCache opens or creates a disk cache in the given directory.
func OpenDiskCache(dir string) (*DiskCache, error) {
	if dir == "" {
		return nil, ngstate.Validationf("no directory given for disk cache")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("can't create disk cache directory %q: %v", dir, err)
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{}).
		WithSyncWrites(false).
		WithNumVersionsToKeep(1)

	timedLog := ngstate.NewTimeLog()
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open disk cache @ %s: %v", dir, err)
	}
	timedLog.Debugf("Opened disk cache @ %s", dir)

	dc := &DiskCache{dir: dir, db: db}
	if err := dc.checkVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return dc, nil
}

// checkVersion clears a cache written with an incompatible layout.
func (dc *DiskCache) checkVersion() error {
	var stored []byte
	err := dc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return err
	}
	if stored != nil {
		ver, err := semver.Parse(string(stored))
		if err == nil && ver.Major == DiskCacheVersion.Major {
			return nil
		}
		ngstate.Infof("Clearing disk cache @ %s with layout %q, need %s\n", dc.dir, stored, DiskCacheVersion)
		if err := dc.db.DropAll(); err != nil {
			return err
		}
	}
	return dc.db.Update(func(txn *badger.Txn) error {
		return txn.Set(versionKey, []byte(DiskCacheVersion.String()))
	})
}

// Get returns the cached document for a source location.  The returned bool is
// false if nothing is cached.
func (dc *DiskCache) Get(location string) ([]byte, bool, error) {
	var compressed []byte
	err := dc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(infoPrefix + location))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil || compressed == nil {
		return nil, false, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, false, fmt.Errorf("bad cached info for %q: %v", location, err)
	}
	return data, true, nil
}

// Put stores the document for a source location.  A positive ttl expires it.
func (dc *DiskCache) Put(location string, data []byte, ttl time.Duration) error {
	entry := badger.NewEntry([]byte(infoPrefix+location), snappy.Encode(nil, data))
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	return dc.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

// Close flushes and closes the cache.
func (dc *DiskCache) Close() error {
	return dc.db.Close()
}

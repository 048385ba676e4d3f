package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/recallhq/memvault/models"
	"github.com/recallhq/memvault/services"
)

const indexFileName = "index.json"

// ownerLock returns the mutex serializing mutations for one owner
// directory. Store performs a read-modify-write of index.json; without
// per-owner serialization concurrent stores can lose updates. Different
// owners proceed fully in parallel.
func (v *Vault) ownerLock(owner string) *sync.Mutex {
	v.locksMu.Lock()
	defer v.locksMu.Unlock()
	mu, ok := v.locks[owner]
	if !ok {
		mu = &sync.Mutex{}
		v.locks[owner] = mu
	}
	return mu
}

func (v *Vault) indexPath(owner string) string {
	return filepath.Join(v.ownerDir(owner), indexFileName)
}

// readIndex loads the owner's index from disk. A missing file is an empty
// index. Writers must hold the owner lock; readers get a private copy via
// loadIndexForRead.
func (v *Vault) readIndex(owner string) (*models.UserIndex, error) {
	raw, err := os.ReadFile(v.indexPath(owner))
	if os.IsNotExist(err) {
		return models.NewUserIndex(), nil
	}
	if err != nil {
		return nil, services.WrapStorage("reading index", err)
	}
	var ix models.UserIndex
	if err := json.Unmarshal(raw, &ix); err != nil {
		return nil, services.ErrIndexCorrupt.WithDetail("owner", owner).WithDetail("cause", err.Error())
	}
	if ix.Stats.ByCategory == nil {
		ix.Stats.ByCategory = make(map[string]int)
	}
	return &ix, nil
}

// loadIndexForRead returns the owner's index for read-only use, serving
// from the cache when fresh. Callers must not mutate the result.
func (v *Vault) loadIndexForRead(owner string) (*models.UserIndex, error) {
	if ix := v.cache.Get(owner); ix != nil {
		return ix, nil
	}
	epoch := v.cache.Epoch(owner)
	ix, err := v.readIndex(owner)
	if err != nil {
		return nil, err
	}
	v.cache.SetIfCurrent(owner, ix, epoch)
	return ix, nil
}

// writeIndex persists the index atomically (temp file + rename) and drops
// the cached copy. Caller holds the owner lock.
func (v *Vault) writeIndex(owner string, ix *models.UserIndex) error {
	path := v.indexPath(owner)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return services.WrapStorage("creating owner directory", err)
	}
	raw, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return services.WrapStorage("encoding index", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o640); err != nil {
		return services.WrapStorage("writing index", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return services.WrapStorage("replacing index", err)
	}
	v.cache.Invalidate(owner)
	return nil
}

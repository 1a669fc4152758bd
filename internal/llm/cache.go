package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru"
	bolt "go.etcd.io/bbolt"

	"github.com/owulveryck/amcp/internal/amcperr"
)

var cacheBucket = []byte("llm_cache")

// cacheEntry is what both cache tiers store: the response text plus the
// timestamp it was written, so TTL expiry can be enforced on read.
type cacheEntry struct {
	Response  string    `json:"response"`
	WrittenAt time.Time `json:"writtenAt"`
}

// Cache is the two-tier (memory LRU + disk) cache spec section 4.9
// describes: memory first, then disk, with write-through on a fresh
// response and lazy disk loading on first lookup.
type Cache struct {
	mem *lru.Cache
	db  *bolt.DB
	ttl time.Duration
}

// NewCache opens (or creates) the bbolt file at diskPath and constructs the
// memory tier with capacity memEntries. diskPath == "" disables the disk
// tier (memory-only), useful for tests.
func NewCache(memEntries int, ttl time.Duration, diskPath string) (*Cache, error) {
	if memEntries <= 0 {
		memEntries = 500
	}
	mem, err := lru.New(memEntries)
	if err != nil {
		return nil, amcperr.New(amcperr.KindInternal, component, "NewCache", err)
	}

	c := &Cache{mem: mem, ttl: ttl}
	if diskPath == "" {
		return c, nil
	}

	db, err := bolt.Open(diskPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, amcperr.New(amcperr.KindUnavailable, component, "NewCache", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, amcperr.New(amcperr.KindInternal, component, "NewCache", err)
	}
	c.db = db
	return c, nil
}

// Close releases the disk tier's file handle, if a disk tier is configured.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Key hashes (model, normalized prompt, relevant parameters) into a cache
// key, per spec section 4.9 step 1.
func Key(model, prompt string, params map[string]interface{}) string {
	normalized := normalizePrompt(prompt)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "model=%s\nprompt=%s\n", model, normalized)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v\n", k, params[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizePrompt(prompt string) string {
	return prompt
}

// Get checks the memory tier then the disk tier, per spec section 4.9 step
// 1. A disk hit is promoted into the memory tier. Expired entries (older
// than ttl) are treated as misses.
func (c *Cache) Get(key string) (string, bool) {
	if v, ok := c.mem.Get(key); ok {
		entry := v.(cacheEntry)
		if c.fresh(entry) {
			return entry.Response, true
		}
		c.mem.Remove(key)
	}

	if c.db == nil {
		return "", false
	}

	var entry cacheEntry
	found := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found || !c.fresh(entry) {
		return "", false
	}
	c.mem.Add(key, entry)
	return entry.Response, true
}

// Put write-through stores response under key in both tiers, per spec
// section 4.9 step 4.
func (c *Cache) Put(key, response string) {
	entry := cacheEntry{Response: response, WrittenAt: time.Now()}
	c.mem.Add(key, entry)

	if c.db == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(key), data)
	})
}

func (c *Cache) fresh(entry cacheEntry) bool {
	if c.ttl <= 0 {
		return true
	}
	return time.Since(entry.WrittenAt) < c.ttl
}

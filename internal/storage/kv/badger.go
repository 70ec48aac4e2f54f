package kv

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Composite structures live under "{key}\x00{tag}\x00{member}". The NUL byte sorts
// before every printable character, so a key's members are adjacent to it in
// iteration order and never collide with ordinary string keys.
const (
	sep       = "\x00"
	tagSet    = "s"
	tagZSet   = "z"
	tagList   = "l"
)

var errBadgerClosed = errors.New("badger: database closed")

// BadgerClient emulates the redis data model on an embedded badger database.
// Every call runs in its own badger transaction.
type BadgerClient struct {
	db *badger.DB
}

// NewBadgerClient opens a database at path; an empty path runs fully in memory.
func NewBadgerClient(path string) (*BadgerClient, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerClient{db: db}, nil
}

func NewBadgerClientFrom(db *badger.DB) *BadgerClient {
	return &BadgerClient{db: db}
}

func memberKey(key, tag, member string) []byte {
	return []byte(key + sep + tag + sep + member)
}

func memberPrefix(key, tag string) []byte {
	return []byte(key + sep + tag + sep)
}

func listKey(key string) []byte {
	return []byte(key + sep + tagList)
}

func (c *BadgerClient) view(fn func(txn *badger.Txn) error) error {
	if c.db.IsClosed() {
		return errBadgerClosed
	}
	return c.db.View(fn)
}

func (c *BadgerClient) update(fn func(txn *badger.Txn) error) error {
	if c.db.IsClosed() {
		return errBadgerClosed
	}
	return c.db.Update(fn)
}

func getString(txn *badger.Txn, key []byte) (string, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, err
	}
	return string(val), true, nil
}

func (c *BadgerClient) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := c.view(func(txn *badger.Txn) error {
		var err error
		value, found, err = getString(txn, []byte(key))
		return err
	})
	return value, found, err
}

func (c *BadgerClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Del removes the keys along with any set, sorted-set or list stored under them.
func (c *BadgerClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			var children [][]byte
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			prefix := []byte(key + sep)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				children = append(children, it.Item().KeyCopy(nil))
			}
			it.Close()
			for _, child := range children {
				if err := txn.Delete(child); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (c *BadgerClient) MGet(ctx context.Context, keys ...string) ([]string, []bool, error) {
	values := make([]string, len(keys))
	found := make([]bool, len(keys))
	err := c.view(func(txn *badger.Txn) error {
		for i, key := range keys {
			v, ok, err := getString(txn, []byte(key))
			if err != nil {
				return err
			}
			values[i], found[i] = v, ok
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return values, found, nil
}

// Scan walks the keys sharing match's literal prefix. The cursor is the number of
// base keys already visited under that prefix; count bounds the keys visited per call.
func (c *BadgerClient) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	if count <= 0 {
		count = 10
	}
	prefix := literalPrefix(match)

	var (
		keys    []string
		next    uint64
		visited uint64
	)
	err := c.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		last := ""
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			base := string(it.Item().Key())
			if i := strings.Index(base, sep); i >= 0 {
				base = base[:i]
			}
			if base == last {
				continue
			}
			last = base

			if visited < cursor {
				visited++
				continue
			}
			if visited >= cursor+uint64(count) {
				next = visited
				return nil
			}
			visited++
			if matchGlob(match, base) {
				keys = append(keys, base)
			}
		}
		next = 0
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return keys, next, nil
}

func (c *BadgerClient) SAdd(ctx context.Context, key string, members ...string) error {
	return c.update(func(txn *badger.Txn) error {
		for _, m := range members {
			if err := txn.Set(memberKey(key, tagSet, m), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *BadgerClient) SRem(ctx context.Context, key string, members ...string) error {
	return c.update(func(txn *badger.Txn) error {
		for _, m := range members {
			if err := txn.Delete(memberKey(key, tagSet, m)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *BadgerClient) SMembers(ctx context.Context, key string) ([]string, error) {
	members := []string{}
	err := c.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := memberPrefix(key, tagSet)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			members = append(members, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return members, err
}

func encodeScore(score float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(score))
	return buf
}

func (c *BadgerClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.update(func(txn *badger.Txn) error {
		return txn.Set(memberKey(key, tagZSet, member), encodeScore(score))
	})
}

type scoredMember struct {
	member string
	score  float64
}

func (c *BadgerClient) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var all []scoredMember
	err := c.view(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := memberPrefix(key, tagZSet)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			member := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return nil
				}
				all = append(all, scoredMember{member, math.Float64frombits(binary.BigEndian.Uint64(val))})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Redis orders equal scores lexicographically; ZREVRANGE reverses that too.
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].member > all[j].member
	})

	s, e, ok := normalizeRange(int64(len(all)), start, stop)
	if !ok {
		return []string{}, nil
	}
	out := make([]string, 0, e-s+1)
	for _, sm := range all[s : e+1] {
		out = append(out, sm.member)
	}
	return out, nil
}

func (c *BadgerClient) ZRem(ctx context.Context, key string, members ...string) error {
	return c.update(func(txn *badger.Txn) error {
		for _, m := range members {
			if err := txn.Delete(memberKey(key, tagZSet, m)); err != nil {
				return err
			}
		}
		return nil
	})
}

func readList(txn *badger.Txn, key string) ([]string, error) {
	raw, ok, err := getString(txn, listKey(key))
	if err != nil || !ok {
		return []string{}, err
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func writeList(txn *badger.Txn, key string, list []string) error {
	if len(list) == 0 {
		return txn.Delete(listKey(key))
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return txn.Set(listKey(key), data)
}

func (c *BadgerClient) LPush(ctx context.Context, key string, values ...string) error {
	return c.update(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		head := make([]string, 0, len(values)+len(list))
		for i := len(values) - 1; i >= 0; i-- {
			head = append(head, values[i])
		}
		return writeList(txn, key, append(head, list...))
	})
}

func (c *BadgerClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var out []string
	err := c.view(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		s, e, ok := normalizeRange(int64(len(list)), start, stop)
		if !ok {
			out = []string{}
			return nil
		}
		out = append([]string{}, list[s:e+1]...)
		return nil
	})
	return out, err
}

func (c *BadgerClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	return c.update(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		s, e, ok := normalizeRange(int64(len(list)), start, stop)
		if !ok {
			return writeList(txn, key, nil)
		}
		return writeList(txn, key, list[s:e+1])
	})
}

func (c *BadgerClient) LRem(ctx context.Context, key string, value string) error {
	return c.update(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		kept := list[:0]
		for _, v := range list {
			if v != value {
				kept = append(kept, v)
			}
		}
		return writeList(txn, key, kept)
	})
}

func (c *BadgerClient) Ping(ctx context.Context) error {
	if c.db.IsClosed() {
		return errBadgerClosed
	}
	return nil
}

func (c *BadgerClient) Close() error {
	return c.db.Close()
}

// normalizeRange applies redis index semantics (negative counts from the end,
// inclusive stop) and reports whether the resulting range is non-empty.
func normalizeRange(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/store"
)

// 键布局：
//
//	kv/<key>              配置
//	round/<seq:020d>      局记录（只保留最近 historyLimit 条）
//	click/<seq:020d>      点击记录
//	stats/<session>       session 统计（JSON）
const (
	prefixKV    = "kv/"
	prefixRound = "round/"
	prefixClick = "click/"
	prefixStats = "stats/"
)

// Store Badger 实现，适合不想依赖 SQLite 文件的部署
type Store struct {
	db           *badger.DB
	roundSeq     *badger.Sequence
	clickSeq     *badger.Sequence
	historyLimit int
}

var _ store.Store = (*Store)(nil)

type OpenOptions struct {
	Path         string
	InMemory     bool
	HistoryLimit int
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" && !opts.InMemory {
		return nil, errors.New("badgerstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	roundSeq, err := db.GetSequence([]byte("seq/round"), 64)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	clickSeq, err := db.GetSequence([]byte("seq/click"), 64)
	if err != nil {
		_ = roundSeq.Release()
		_ = db.Close()
		return nil, err
	}
	limit := opts.HistoryLimit
	if limit < domain.MinHistoryCapacity {
		limit = domain.DefaultHistoryCapacity
	}
	return &Store{db: db, roundSeq: roundSeq, clickSeq: clickSeq, historyLimit: limit}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	_ = s.roundSeq.Release()
	_ = s.clickSeq.Release()
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	k := []byte(prefixKV + strings.TrimSpace(key))
	var (
		out   string
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	k := strings.TrimSpace(key)
	if k == "" {
		return errors.New("badgerstore: key is empty")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixKV+k), []byte(value))
	})
}

func seqKey(prefix string, n uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, n))
}

func statsKey(session int64) []byte {
	return []byte(prefixStats + strconv.FormatInt(session, 10))
}

func (s *Store) AppendRound(_ context.Context, r store.RoundRecord) (int64, error) {
	n, err := s.roundSeq.Next()
	if err != nil {
		return 0, err
	}
	// badger 的 sequence 从 0 开始
	r.ID = int64(n) + 1
	data, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(seqKey(prefixRound, uint64(r.ID)), data); err != nil {
			return err
		}
		c, err := loadStats(txn, r.SessionID)
		if err != nil {
			return err
		}
		c.AddRound(r)
		if err := saveStats(txn, c); err != nil {
			return err
		}
		return s.pruneRounds(txn)
	})
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}

// pruneRounds 倒序遍历，保留最新的 historyLimit 条，其余删除
func (s *Store) pruneRounds(txn *badger.Txn) error {
	stale := s.staleRounds(txn)
	for _, k := range stale {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// staleRounds 收集需要删除的键；迭代器关闭后再删除
func (s *Store) staleRounds(txn *badger.Txn) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(prefixRound)
	var stale [][]byte
	kept := 0
	for it.Seek(append(append([]byte{}, prefix...), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
		if kept < s.historyLimit {
			kept++
			continue
		}
		stale = append(stale, it.Item().KeyCopy(nil))
	}
	return stale
}

func (s *Store) RecentRounds(_ context.Context, n int) ([]store.RoundRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []store.RoundRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRound)
		for it.Seek(append(append([]byte{}, prefix...), 0xFF)); it.ValidForPrefix(prefix) && len(out) < n; it.Next() {
			var r store.RoundRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *Store) AppendClick(_ context.Context, c store.ClickRecord) error {
	n, err := s.clickSeq.Next()
	if err != nil {
		return err
	}
	c.ID = int64(n) + 1
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(seqKey(prefixClick, uint64(c.ID)), data); err != nil {
			return err
		}
		st, err := loadStats(txn, c.SessionID)
		if err != nil {
			return err
		}
		st.AddClick(c)
		return saveStats(txn, st)
	})
}

func (s *Store) Counters(_ context.Context, session int64) (store.Counters, error) {
	var c store.Counters
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		c, err = loadStats(txn, session)
		return err
	})
	return c, err
}

func loadStats(txn *badger.Txn, session int64) (store.Counters, error) {
	c := store.Counters{SessionID: session}
	item, err := txn.Get(statsKey(session))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &c)
	})
	return c, err
}

func saveStats(txn *badger.Txn, c store.Counters) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return txn.Set(statsKey(c.SessionID), data)
}

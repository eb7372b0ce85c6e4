package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

var (
	ErrNotOpened = errors.New("secretstore: not opened")
	ErrEmptyKey  = errors.New("secretstore: key is empty")
)

// Store 基于 Badger 的密钥存储；静态加密由 Badger 的 EncryptionKey 提供
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 字节；为空时不加密
	ReadOnly      bool
	InMemory      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	path := opts.Path
	if opts.InMemory {
		path = ""
	}
	bopts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithInMemory(opts.InMemory).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// 加密模式下 Badger 要求设置 index cache
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(16 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("secretstore: open %s: %w", opts.Path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeKey(key string) ([]byte, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return nil, ErrEmptyKey
	}
	return []byte(k), nil
}

// GetString 返回 (值, 是否存在, 错误)
func (s *Store) GetString(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	var (
		out   string
		found bool
	)
	err = s.db.View(func(txn *badger.Txn) error {
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

func (s *Store) SetString(key string, val string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(val))
	})
}

func (s *Store) Delete(key string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// Keys 列出指定前缀下的所有 key（只返回 key，不读取值）
func (s *Store) Keys(prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpened
	}
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// ---- 账户凭证 ----

const (
	fieldAPIKey    = "api_key"
	fieldAPISecret = "api_secret"
)

// CredentialKey 账户凭证在存储中的 key：主账户为 master/<field>，从账户为 account/<name>/<field>
func CredentialKey(account string, primary bool, field string) string {
	if primary {
		return "master/" + field
	}
	return "account/" + strings.TrimSpace(account) + "/" + field
}

// LoadCredentials 读取账户的 API key/secret；两者都存在才视为找到
func (s *Store) LoadCredentials(account string, primary bool) (apiKey, apiSecret string, found bool, err error) {
	apiKey, okKey, err := s.GetString(CredentialKey(account, primary, fieldAPIKey))
	if err != nil {
		return "", "", false, err
	}
	apiSecret, okSecret, err := s.GetString(CredentialKey(account, primary, fieldAPISecret))
	if err != nil {
		return "", "", false, err
	}
	if !okKey || !okSecret {
		return "", "", false, nil
	}
	return apiKey, apiSecret, true, nil
}

// SaveCredentials 在一个事务中写入 key/secret
func (s *Store) SaveCredentials(account string, primary bool, apiKey, apiSecret string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	if !primary && strings.TrimSpace(account) == "" {
		return errors.New("secretstore: account name is required")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(CredentialKey(account, primary, fieldAPIKey)), []byte(apiKey)); err != nil {
			return err
		}
		return txn.Set([]byte(CredentialKey(account, primary, fieldAPISecret)), []byte(apiSecret))
	})
}

// ParseKey 解析 32 字节加密密钥（hex 或 base64）；空输入返回 nil
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}

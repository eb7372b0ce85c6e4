package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "persistence")

// Service 持久化服务接口
type Service interface {
	NewStore(prefix, id, tag string) Store
}

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
	Remove() error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = errors.New("persistence data not exists")

// JSONFileService 基于 JSON 文件的持久化服务
type JSONFileService struct {
	baseDir string
}

// NewJSONFileService 创建 JSON 文件持久化服务
func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

// NewStore 创建新的存储，文件名由 prefix/id/tag 拼接
func (s *JSONFileService) NewStore(prefix, id, tag string) Store {
	return &JSONFileStore{
		dir: s.baseDir,
		key: fmt.Sprintf("%s:%s:%s", prefix, id, tag),
	}
}

// JSONFileStore JSON 文件存储实现
type JSONFileStore struct {
	dir string
	key string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *JSONFileStore) filePath() string {
	safe := keySanitizer.ReplaceAllString(s.key, "_")
	return filepath.Join(s.dir, safe+".json")
}

// Save 原子写入（先写临时文件再 rename）
func (s *JSONFileStore) Save(data interface{}) error {
	log.Debugf("[persistence] Save: key=%s", s.key)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	path := s.filePath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load 加载数据；文件不存在或为空返回 ErrNotExists
func (s *JSONFileStore) Load(data interface{}) error {
	log.Debugf("[persistence] Load: key=%s", s.key)
	b, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}

// Remove 删除数据，不存在时不报错
func (s *JSONFileStore) Remove() error {
	err := os.Remove(s.filePath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryService 内存持久化服务（测试与不落盘场景）
type MemoryService struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryService() *MemoryService {
	return &MemoryService{data: make(map[string][]byte)}
}

func (s *MemoryService) NewStore(prefix, id, tag string) Store {
	return &memoryStore{svc: s, key: fmt.Sprintf("%s:%s:%s", prefix, id, tag)}
}

type memoryStore struct {
	svc *MemoryService
	key string
}

func (m *memoryStore) Save(data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.svc.mu.Lock()
	m.svc.data[m.key] = b
	m.svc.mu.Unlock()
	return nil
}

func (m *memoryStore) Load(data interface{}) error {
	m.svc.mu.Lock()
	b, ok := m.svc.data[m.key]
	m.svc.mu.Unlock()
	if !ok {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}

func (m *memoryStore) Remove() error {
	m.svc.mu.Lock()
	delete(m.svc.data, m.key)
	m.svc.mu.Unlock()
	return nil
}

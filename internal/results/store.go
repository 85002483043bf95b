package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultFileName は結果ディレクトリ内の記録ファイル名
const DefaultFileName = "results.json"

// Entry は保存した録画1件の記録
type Entry struct {
	ID       string    `json:"id"`
	DateTime string    `json:"date_time"` // 録画開始日時 (ファイル名と同じ書式)
	Length   string    `json:"length"`    // 録画時間 mm:ss
	SavedAt  time.Time `json:"saved_at"`
}

// FileStore は録画の記録をJSONファイルに追記する
type FileStore struct {
	path   string
	logger *logrus.Entry

	mu      sync.RWMutex
	entries []Entry
}

// NewFileStore は path の記録ファイルを読み込んだFileStoreを作成する
// ファイルがなければ空の状態から始める。
func NewFileStore(path string, logger *logrus.Entry) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("記録ディレクトリの作成に失敗: %w", err)
	}

	s := &FileStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("記録ファイルの読み込みに失敗: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("記録ファイルの解析に失敗 (%s): %w", path, err)
		}
	}

	logger.WithField("entries", len(s.entries)).Debug("録画の記録を読み込みました")
	return s, nil
}

// SaveResultData は録画1件の記録を追加してファイルに書き込む
func (s *FileStore) SaveResultData(dateTime, videoLength string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		ID:       uuid.NewString(),
		DateTime: dateTime,
		Length:   videoLength,
		SavedAt:  time.Now(),
	}

	entries := append(s.entries, entry)
	if err := s.write(entries); err != nil {
		return err
	}
	s.entries = entries

	s.logger.WithFields(logrus.Fields{
		"date_time": dateTime,
		"length":    videoLength,
	}).Info("録画を記録しました")
	return nil
}

// List は記録を古い順に返す
func (s *FileStore) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// write は一時ファイルに書いてから置き換える
func (s *FileStore) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("記録のエンコードに失敗: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("記録ファイルの書き込みに失敗: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("記録ファイルの置き換えに失敗: %w", err)
	}
	return nil
}

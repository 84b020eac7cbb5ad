// Package files stores uploaded source documents on disk, one directory
// per user, named by a generated file ID plus the original extension.
package files

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DefaultMaxSize is the upload limit when none is configured.
const DefaultMaxSize int64 = 10 * 1024 * 1024

// AllowedExtensions lists the upload types the document processor can read.
var AllowedExtensions = []string{".pdf", ".docx", ".txt", ".md"}

var (
	// ErrNotFound is returned for unknown file IDs.
	ErrNotFound = errors.New("file not found")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrUnsupportedType is returned for extensions outside AllowedExtensions.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Upload describes a stored file.
type Upload struct {
	FileID      string    `json:"file_id"`
	Filename    string    `json:"filename"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	UploadTime  time.Time `json:"upload_time"`

	// Path is the location on disk. Never sent to clients.
	Path string `json:"-"`
}

// Store keeps uploads under a base directory.
type Store struct {
	dir     string
	maxSize int64
}

// New creates a Store rooted at dir. A maxSize of zero uses DefaultMaxSize.
func New(dir string, maxSize int64) (*Store, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

// MaxSize returns the configured upload limit in bytes.
func (s *Store) MaxSize() int64 { return s.maxSize }

// CheckExtension validates the extension of filename and returns it lower-cased.
func CheckExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w. Allowed types: %s", ErrUnsupportedType, strings.Join(AllowedExtensions, ", "))
}

// TooLargeError builds the ErrTooLarge error carrying the human readable limit.
func TooLargeError(limit int64) error {
	return fmt.Errorf("%w. Maximum size allowed is %s", ErrTooLarge, humanize.IBytes(uint64(limit)))
}

// Save writes r to disk for the given user. The write is aborted and the
// partial file removed if the content exceeds the size limit.
func (s *Store) Save(userID int64, filename string, r io.Reader) (*Upload, error) {
	ext, err := CheckExtension(filename)
	if err != nil {
		return nil, err
	}

	userDir := s.userDir(userID)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("create user dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(userDir, id+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	// Read one byte past the limit to detect oversized uploads.
	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", copyErr)
	case closeErr != nil:
		os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", closeErr)
	case n > s.maxSize:
		os.Remove(path)
		return nil, TooLargeError(s.maxSize)
	}

	return &Upload{
		FileID:      id,
		Filename:    filename,
		FileSize:    n,
		ContentType: contentType(ext),
		UploadTime:  time.Now().UTC(),
		Path:        path,
	}, nil
}

// List returns the user's uploads, oldest first.
func (s *Store) List(userID int64) ([]*Upload, error) {
	entries, err := os.ReadDir(s.userDir(userID))
	if errors.Is(err, os.ErrNotExist) {
		return []*Upload{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	out := make([]*Upload, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, s.describe(userID, e.Name(), info))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadTime.Before(out[j].UploadTime)
	})
	return out, nil
}

// Get returns the upload with the given ID.
func (s *Store) Get(userID int64, fileID string) (*Upload, error) {
	path, err := s.find(userID, fileID)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	return s.describe(userID, filepath.Base(path), info), nil
}

// Open returns a reader for the stored file.
func (s *Store) Open(userID int64, fileID string) (*os.File, *Upload, error) {
	u, err := s.Get(userID, fileID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(u.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	return f, u, nil
}

// Delete removes the stored file.
func (s *Store) Delete(userID int64, fileID string) error {
	path, err := s.find(userID, fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (s *Store) userDir(userID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(userID, 10))
}

// find resolves a file ID to its path. IDs must be UUIDs so that callers
// cannot escape the user directory.
func (s *Store) find(userID int64, fileID string) (string, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return "", ErrNotFound
	}
	matches, err := filepath.Glob(filepath.Join(s.userDir(userID), fileID+".*"))
	if err != nil {
		return "", fmt.Errorf("find upload: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}
	return matches[0], nil
}

func (s *Store) describe(userID int64, name string, info os.FileInfo) *Upload {
	ext := filepath.Ext(name)
	id := strings.TrimSuffix(name, ext)
	return &Upload{
		FileID:      id,
		Filename:    "upload_" + id + ext,
		FileSize:    info.Size(),
		ContentType: contentType(ext),
		UploadTime:  info.ModTime().UTC(),
		Path:        filepath.Join(s.userDir(userID), name),
	}
}

func contentType(ext string) string {
	switch ext {
	case ".md":
		return "text/markdown"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

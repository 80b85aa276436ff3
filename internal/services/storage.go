package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrInvalidFilename    = errors.New("invalid filename")
	ErrUnsupportedFileExt = errors.New("unsupported file extension")
	ErrFileTooLarge       = errors.New("file too large")
)

type StorageService interface {
	StageFile(file *multipart.FileHeader) (*StagedFile, error)
	Stage(filename string, r io.Reader) (*StagedFile, error)
	Save(filename string, r io.Reader) (string, int64, error)
	GetFilePath(filename string) string
	DeleteFile(filename string) error
	EnsureUploadDir() error
}

// StagedFile is an upload written next to its destination but not yet
// visible under its name. Commit or Discard it.
type StagedFile struct {
	Name string
	Size int64

	tmpPath string
	dest    string
}

// Path is where the staged content can be read before Commit.
func (f *StagedFile) Path() string {
	return f.tmpPath
}

// Commit atomically replaces the destination with the staged content.
func (f *StagedFile) Commit() error {
	if err := os.Rename(f.tmpPath, f.dest); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// Discard removes the staged content. It is a no-op after Commit.
func (f *StagedFile) Discard() {
	_ = os.Remove(f.tmpPath)
}

type storageService struct {
	uploadPath  string
	maxFileSize int64
	allowedExts map[string]bool
}

// NewStorageService stores uploads under uploadPath keyed by their sanitized
// name. An empty allowedExts accepts any extension.
func NewStorageService(uploadPath string, maxFileSize int64, allowedExts []string) StorageService {
	allowed := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		allowed[normalizeExt(ext)] = true
	}
	return &storageService{
		uploadPath:  uploadPath,
		maxFileSize: maxFileSize,
		allowedExts: allowed,
	}
}

func (s *storageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	return nil
}

// StageFile implements StorageService.
func (s *storageService) StageFile(file *multipart.FileHeader) (*StagedFile, error) {
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, file.Size)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	return s.Stage(file.Filename, src)
}

// Stage copies r into a temporary file of the upload directory, checking the
// name, extension and size limit.
func (s *storageService) Stage(filename string, r io.Reader) (*StagedFile, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if len(s.allowedExts) > 0 && !s.allowedExts[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileExt, displayExt(ext))
	}

	// keep the extension so extractors that dispatch on it can read the staged copy
	tmp, err := os.CreateTemp(s.uploadPath, ".upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	staged := &StagedFile{Name: name, tmpPath: tmp.Name(), dest: s.GetFilePath(name)}

	src := r
	if s.maxFileSize > 0 {
		src = io.LimitReader(r, s.maxFileSize+1)
	}

	size, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		staged.Discard()
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		staged.Discard()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, s.maxFileSize)
	}

	staged.Size = size
	return staged, nil
}

// Save writes r under the sanitized filename, replacing an existing file
// only once the copy is complete.
func (s *storageService) Save(filename string, r io.Reader) (string, int64, error) {
	staged, err := s.Stage(filename, r)
	if err != nil {
		return "", 0, err
	}
	if err := staged.Commit(); err != nil {
		staged.Discard()
		return "", 0, err
	}
	return staged.Name, staged.Size, nil
}

func (s *storageService) GetFilePath(filename string) string {
	return filepath.Join(s.uploadPath, filepath.Base(filename))
}

// DeleteFile removes a stored upload. A missing file is not an error.
func (s *storageService) DeleteFile(filename string) error {
	filePath := s.GetFilePath(filename)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// SanitizeFilename reduces a client supplied name to a safe base name made of
// letters, digits, dot, dash and underscore.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteByte('_')
		}
	}

	out := strings.Trim(sb.String(), "._")
	if out == "" || out == "." || out == ".." {
		return ""
	}
	return out
}

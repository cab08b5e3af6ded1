package storage

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
)

// SavedUpload describes one recording written to the upload directory.
type SavedUpload struct {
	Path     string
	MIMEType string
	Size     int64
}

type pendingUpload struct {
	upload   SavedUpload
	filename string
}

// FileManager owns the upload and export directories. Uploads are sniffed,
// renamed to a uuid and size capped while streaming to disk. Raw uploads
// arriving over signed links are parked as pending until the job that
// references them is submitted.
type FileManager struct {
	baseDir        string
	uploadDir      string
	exportDir      string
	maxUploadBytes int64
	log            *logger.Logger

	mu      sync.Mutex
	pending map[string]pendingUpload
}

var mimeExtensionFallback = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/wave":      ".wav",
	"audio/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"audio/flac":      ".flac",
	"video/mp4":       ".m4a",
	"video/quicktime": ".m4a",
}

var extensionMIMEFallback = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
}

func NewFileManager(baseDir string, maxUploadBytes int64, log *logger.Logger) (*FileManager, error) {
	fm := &FileManager{
		baseDir:        baseDir,
		uploadDir:      filepath.Join(baseDir, "uploads"),
		exportDir:      filepath.Join(baseDir, "exports"),
		maxUploadBytes: maxUploadBytes,
		log:            log.WithComponent("files"),
		pending:        map[string]pendingUpload{},
	}

	dirs := []string{fm.baseDir, fm.uploadDir, fm.exportDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return fm, nil
}

// SaveAudio streams one recording to the upload directory. The first 512
// bytes are sniffed to pick a content type; the original filename only
// contributes its extension.
func (fm *FileManager) SaveAudio(r io.Reader, filename string) (SavedUpload, error) {
	sample := make([]byte, 512)
	n, err := r.Read(sample)
	if err != nil && err != io.EOF {
		return SavedUpload{}, fmt.Errorf("read audio sample: %w", err)
	}
	sample = sample[:n]

	ext := normalizeExtension(filename)
	contentType := strings.ToLower(http.DetectContentType(sample))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if ext == "" {
		ext = fallbackExtension(contentType)
	}
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	mimeType := contentType
	if !strings.HasPrefix(mimeType, "audio/") && !strings.HasPrefix(mimeType, "video/") {
		if fallback, ok := extensionMIMEFallback[ext]; ok {
			mimeType = fallback
		} else {
			fm.log.WithField("content_type", contentType).WithField("ext", ext).
				Warn("unrecognized audio mime type, continuing")
		}
	}

	id := uuid.NewString()
	path := filepath.Join(fm.uploadDir, id+ext)

	size, err := fm.writeWithLimit(path, sample, r)
	if err != nil {
		return SavedUpload{}, err
	}

	return SavedUpload{Path: path, MIMEType: mimeType, Size: size}, nil
}

// PutPending parks a raw upload under its link id until the job that
// references it arrives.
func (fm *FileManager) PutPending(id string, upload SavedUpload, filename string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.pending[id] = pendingUpload{upload: upload, filename: filename}
}

// TakePending claims a parked upload. Each id can be consumed once.
func (fm *FileManager) TakePending(id string) (SavedUpload, string, bool) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	entry, ok := fm.pending[id]
	if !ok {
		return SavedUpload{}, "", false
	}
	delete(fm.pending, id)
	return entry.upload, entry.filename, true
}

// ExportPath returns where a generated document should be written.
func (fm *FileManager) ExportPath(name string) string {
	return filepath.Join(fm.exportDir, name)
}

// Remove deletes a managed file, logging instead of failing since cleanup
// runs after the response is already decided.
func (fm *FileManager) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fm.log.WithError(err).WithField("path", path).Warn("failed to remove file")
	}
}

func (fm *FileManager) writeWithLimit(path string, sample []byte, r io.Reader) (int64, error) {
	if fm.maxUploadBytes > 0 && int64(len(sample)) > fm.maxUploadBytes {
		return 0, fmt.Errorf("audio file exceeds maximum size")
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create audio file: %w", err)
	}

	total := int64(0)

	cleanup := func(err error) (int64, error) {
		out.Close()
		os.Remove(path)
		return 0, err
	}

	if len(sample) > 0 {
		if _, err := out.Write(sample); err != nil {
			return cleanup(fmt.Errorf("write audio sample: %w", err))
		}
		total += int64(len(sample))
	}

	buf := make([]byte, 32*1024)
	for {
		if fm.maxUploadBytes > 0 && total >= fm.maxUploadBytes {
			return cleanup(fmt.Errorf("audio file exceeds maximum size"))
		}

		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if fm.maxUploadBytes > 0 && total > fm.maxUploadBytes {
				return cleanup(fmt.Errorf("audio file exceeds maximum size"))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(fmt.Errorf("write audio file: %w", werr))
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return cleanup(fmt.Errorf("read audio content: %w", err))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("close audio file: %w", err)
	}

	return total, nil
}

func normalizeExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ext
	}

	ext = strings.TrimSpace(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func fallbackExtension(contentType string) string {
	if ext, ok := mimeExtensionFallback[contentType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

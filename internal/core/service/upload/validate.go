package upload

import (
	"fmt"
	"lms-media/internal/core/domain"
	"mime"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
)

// AllowedVideoMimeTypes is a whitelist of supported video MIME types and their extensions.
// It does not rely on OS mime databases.
var AllowedVideoMimeTypes = map[string][]string{
	"video/mp4":        {".mp4", ".m4v"},
	"video/webm":       {".webm"},
	"video/quicktime":  {".mov"},
	"video/x-msvideo":  {".avi"},
	"video/x-matroska": {".mkv"},
	"video/ogg":        {".ogv"},
	"video/3gpp":       {".3gp"},
	"video/mpeg":       {".mpeg", ".mpg"},
}

func (m *Manager) validate(file domain.SourceFile) (string, error) {
	if file.Size <= 0 {
		return "", &domain.ValidationError{Field: "size", Reason: "file is empty", Err: domain.ErrInvalidArgument}
	}
	if file.Size > m.cfg.MaxFileSize.Int64() {
		return "", &domain.ValidationError{
			Field:  "size",
			Reason: fmt.Sprintf("%s exceeds the %s limit", units.BytesSize(float64(file.Size)), m.cfg.MaxFileSize),
			Err:    domain.ErrFileSizeTooBig,
		}
	}

	mimeType, err := validateVideoFile(file.FileName, file.MimeType)
	if err != nil {
		return "", err
	}

	if file.Size > m.cfg.DirectThreshold.Int64() {
		chunks := ChunkCount(file.Size, m.cfg.ChunkSize.Int64())
		if m.cfg.MaxChunks > 0 && chunks > int64(m.cfg.MaxChunks) {
			return "", &domain.ValidationError{
				Field:  "size",
				Reason: fmt.Sprintf("%d chunks of %s exceed the %d chunk limit", chunks, m.cfg.ChunkSize, m.cfg.MaxChunks),
				Err:    domain.ErrFileSizeTooBig,
			}
		}
	}
	return mimeType, nil
}

func validateVideoFile(filename string, contentType string) (string, error) {
	mimeType := extractMimeType(contentType)
	if mimeType == "" {
		return "", &domain.ValidationError{
			Field:  "mime_type",
			Reason: fmt.Sprintf("invalid content type: %q", contentType),
			Err:    domain.ErrUnsupportedType,
		}
	}

	allowedExts, ok := AllowedVideoMimeTypes[mimeType]
	if !ok {
		return "", &domain.ValidationError{
			Field:  "mime_type",
			Reason: fmt.Sprintf("unsupported MIME type: %s", mimeType),
			Err:    domain.ErrUnsupportedType,
		}
	}

	if err := validateExtension(filename, allowedExts); err != nil {
		return "", &domain.ValidationError{Field: "file_name", Reason: err.Error(), Err: domain.ErrUnsupportedType}
	}
	return mimeType, nil
}

func validateExtension(filename string, allowedExts []string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("no file extension found")
	}

	for _, allowed := range allowedExts {
		if ext == allowed {
			return nil
		}
	}

	return fmt.Errorf("extension %s is not allowed (expected one of: %v)", ext, allowedExts)
}

func extractMimeType(contentType string) string {
	mimeType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mimeType)
}

// objectName keeps the base name of a client supplied file name
func objectName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, name)
	if name == "." || name == "/" || name == "" {
		return "video"
	}
	return name
}

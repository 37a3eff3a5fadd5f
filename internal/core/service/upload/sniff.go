package upload

import (
	"fmt"
	"lms-media/internal/core/domain"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h2non/filetype"
)

// HeaderSize is how many leading bytes DetectMimeType needs to recognise a container.
const HeaderSize = 262

// DetectMimeType picks the MIME type of a video from its leading bytes.
// A recognised container wins over the extension and must agree with declared when one is given.
// Unrecognised content falls back to declared and then to the file extension.
func DetectMimeType(header []byte, declared, fileName string) (string, error) {
	detected := ""
	if len(header) > 0 {
		kind, err := filetype.Match(header)
		if err != nil {
			return "", fmt.Errorf("failed to inspect file header: %w", err)
		}
		if kind != filetype.Unknown {
			if kind.MIME.Type != "video" {
				return "", &domain.ValidationError{
					Field:  "content",
					Reason: fmt.Sprintf("file content is %s, not a video", kind.MIME.Value),
					Err:    domain.ErrUnsupportedType,
				}
			}
			detected = normalizeVideoMime(kind.MIME.Value)
		}
	}

	if detected == "" {
		if declared != "" {
			return declared, nil
		}
		return mimeForExtension(filepath.Ext(fileName)), nil
	}

	if _, ok := AllowedVideoMimeTypes[detected]; !ok {
		return "", &domain.ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("unsupported video container: %s", detected),
			Err:    domain.ErrUnsupportedType,
		}
	}
	if declared != "" && extractMimeType(declared) != detected {
		return "", &domain.ValidationError{
			Field:  "mime_type",
			Reason: fmt.Sprintf("declared %s but content is %s", declared, detected),
			Err:    domain.ErrUnsupportedType,
		}
	}
	return detected, nil
}

// m4v is an mp4 container with a different brand
func normalizeVideoMime(mimeType string) string {
	if mimeType == "video/x-m4v" {
		return "video/mp4"
	}
	return mimeType
}

func mimeForExtension(ext string) string {
	ext = strings.ToLower(ext)
	for mimeType, exts := range AllowedVideoMimeTypes {
		if slices.Contains(exts, ext) {
			return mimeType
		}
	}
	return ""
}

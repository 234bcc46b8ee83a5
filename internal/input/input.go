// ABOUTME: Normalizes text, file and speech input into sendable turns
// ABOUTME: Enforces the attachment ceiling and builds image previews

package input

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/coven-widget/internal/session"
)

// MaxAttachmentBytes is the largest file that may be staged.
const MaxAttachmentBytes = 10 * 1024 * 1024

// ErrAttachmentTooLarge is returned for files over MaxAttachmentBytes.
var ErrAttachmentTooLarge = errors.New("attachment exceeds 10 MB limit")

// NormalizeText trims surrounding whitespace. Whitespace-only input becomes "".
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// Sendable reports whether a turn has anything to send.
func Sendable(text string, att *session.Attachment) bool {
	return NormalizeText(text) != "" || att != nil
}

// NewAttachment validates data and builds a staged attachment. An empty
// mimeType is detected from the file name, then from the content.
func NewAttachment(name, mimeType string, data []byte) (*session.Attachment, error) {
	if len(data) > MaxAttachmentBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", name, len(data), ErrAttachmentTooLarge)
	}
	if mimeType == "" {
		mimeType = DetectMIME(name, data)
	}

	att := &session.Attachment{
		AttachmentDescriptor: session.AttachmentDescriptor{
			Name:      filepath.Base(name),
			MimeType:  mimeType,
			SizeBytes: int64(len(data)),
		},
		Data: data,
	}
	if strings.HasPrefix(mimeType, "image/") {
		att.PreviewDataURI = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	return att, nil
}

// ReadAttachment stages a file from disk. The size is checked before the
// contents are read.
func ReadAttachment(path string) (*session.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("reading attachment: %s is a directory", path)
	}
	if info.Size() > MaxAttachmentBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", filepath.Base(path), info.Size(), ErrAttachmentTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return NewAttachment(path, "", data)
}

// DetectMIME guesses a media type from the extension, falling back to
// content sniffing.
func DetectMIME(name string, data []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			mt, _, err := mime.ParseMediaType(t)
			if err == nil {
				return mt
			}
			return t
		}
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

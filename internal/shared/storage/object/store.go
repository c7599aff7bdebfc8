// Package object stores uploaded resumes and their extracted text.
package object

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidKey  = errors.New("object: invalid storage key")
	ErrInvalidName = errors.New("object: invalid file name")
)

// Object describes a stored blob.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is the contract shared by the local and S3 backends.
type Store interface {
	// Put stores r under a fresh key in the owner's namespace.
	Put(ctx context.Context, owner, fileName string, r io.Reader) (Object, error)
	// PutKey stores r at an exact key, replacing any previous object.
	PutKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// NewKey builds "<owner hash>/<uuid>_<file name>".
func NewKey(owner, fileName string) (string, error) {
	name, err := cleanName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(OwnerPrefix(owner), uuid.NewString()+"_"+name), nil
}

// OwnerPrefix returns a path-safe namespace for an owner ID.
func OwnerPrefix(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return hex.EncodeToString(sum[:])
}

// CleanKey rejects absolute keys and keys escaping the store root.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "..") || path.IsAbs(clean) || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

// Sniff reads the head of r to guess its content type. The returned reader
// replays the consumed bytes.
func Sniff(fileName string, r io.Reader) (string, io.Reader, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("read head: %w", err)
	}
	return ContentType(fileName, head[:n]), io.MultiReader(bytes.NewReader(head[:n]), r), nil
}

// ContentType prefers the extension for Office documents, which sniff as zip.
func ContentType(fileName string, head []byte) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".pdf":
		return "application/pdf"
	}
	return http.DetectContentType(head)
}

func cleanName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	s := strings.TrimSpace(name)
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" {
		return "", ErrInvalidName
	}
	return s, nil
}

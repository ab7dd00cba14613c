package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploaded documents and generated confirmation letters live under
// UPLOAD_DIR, served back only through the authenticated file routes.

var uploadDir string

func InitializeUploads() {
	uploadDir = os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
		log.Println("UPLOAD_DIR not set, using ./uploads (development mode)")
	}

	for _, sub := range []string{"documents", "letters"} {
		if err := os.MkdirAll(filepath.Join(uploadDir, sub), 0o755); err != nil {
			log.Panic("error creating upload directory: " + err.Error())
		}
	}
}

// SaveDocumentFile stores an uploaded document on disk and returns the path.
// The stored name embeds application and document IDs so re-uploads of the
// same document overwrite nothing and remain traceable.
func SaveDocumentFile(applicationID, documentID uint, originalName string, src io.Reader) (string, error) {
	ext := filepath.Ext(originalName)
	name := fmt.Sprintf("app%d_doc%d_%d%s", applicationID, documentID, time.Now().UnixNano(), sanitizeExt(ext))
	path := filepath.Join(uploadDir, "documents", name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// LetterPath is where the confirmation letter for an application is written.
func LetterPath(applicationID uint) string {
	return filepath.Join(uploadDir, "letters", fmt.Sprintf("confirmation_app%d.pdf", applicationID))
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}

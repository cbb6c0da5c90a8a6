package helpers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UploadConfig struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
	UploadBasePath   string
	// PublicPrefix is the URL path the base directory is served under.
	PublicPrefix string
}

// BannerUploadConfig accepts images up to 5MB stored under baseDir.
func BannerUploadConfig(baseDir string) UploadConfig {
	return UploadConfig{
		MaxSizeBytes: 5 * 1024 * 1024,
		AllowedMimeTypes: []string{
			"image/jpeg",
			"image/png",
			"image/gif",
			"image/webp",
		},
		UploadBasePath: baseDir,
		PublicPrefix:   "/uploads",
	}
}

// UploadFile validates and stores fileHeader under the upload type's directory
// and returns its public URL.
func UploadFile(c *gin.Context, fileHeader *multipart.FileHeader, uploadType string, config UploadConfig) (string, error) {
	if fileHeader.Size > config.MaxSizeBytes {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", config.MaxSizeBytes/(1024*1024))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	mimeType := http.DetectContentType(buffer[:n])

	mimeTypeAllowed := false
	for _, allowedType := range config.AllowedMimeTypes {
		if mimeType == allowedType {
			mimeTypeAllowed = true
			break
		}
	}
	if !mimeTypeAllowed {
		return "", fmt.Errorf("invalid file type. Allowed types: %s", strings.Join(config.AllowedMimeTypes, ", "))
	}

	uploadPath := filepath.Join(config.UploadBasePath, uploadType)
	if err := os.MkdirAll(uploadPath, os.ModePerm); err != nil {
		return "", err
	}

	filename := uuid.New().String() + strings.ToLower(filepath.Ext(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, filepath.Join(uploadPath, filename)); err != nil {
		return "", err
	}

	return strings.TrimRight(config.PublicPrefix, "/") + "/" + uploadType + "/" + filename, nil
}

// DeleteUpload removes the file behind a URL returned by UploadFile. URLs
// outside the public prefix are ignored.
func DeleteUpload(config UploadConfig, url string) error {
	prefix := strings.TrimRight(config.PublicPrefix, "/") + "/"
	rel, ok := strings.CutPrefix(url, prefix)
	if !ok || rel == "" || strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(config.UploadBasePath, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
)

// Store сохраняет снимки в бакет Google Cloud Storage и возвращает
// стабильные публичные URL, пригодные и для чтения, и для отображения
type Store struct {
	cl         *storage.Client
	bucketName string
	uploadPath string
	logger     *logrus.Logger
}

// New создает хранилище снимков поверх GCS
func New(ctx context.Context, bucketName, uploadPath string, logger *logrus.Logger) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("imagestore: create GCS client: %w", err)
	}

	if !strings.HasSuffix(uploadPath, "/") {
		uploadPath += "/"
	}

	return &Store{
		cl:         client,
		bucketName: bucketName,
		uploadPath: uploadPath,
		logger:     logger,
	}, nil
}

// Save записывает снимок по ключу и возвращает публичный URL объекта.
// Повторная запись по тому же ключу перезаписывает объект.
func (s *Store) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	object := s.uploadPath + key

	wc := s.cl.Bucket(s.bucketName).Object(object).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("imagestore: upload object %s: %w", object, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("imagestore: finalize object %s: %w", object, err)
	}

	ref := fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, object)

	s.logger.WithFields(logrus.Fields{
		"adapter": "imagestore",
		"object":  object,
	}).Debug("Image uploaded")

	return ref, nil
}

// Close освобождает клиент GCS
func (s *Store) Close() error {
	return s.cl.Close()
}

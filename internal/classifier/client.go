package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoDetection возвращается, когда модель отработала успешно,
// но не нашла на снимке ни одного объекта. Это не ошибка сервиса -
// вызывающая сторона должна отличать его от недоступности модели.
var ErrNoDetection = errors.New("classifier: no hazards detected")

// Detection - результат успешной классификации снимка
type Detection struct {
	Label      string
	Confidence float64
	Annotated  []byte // снимок с нанесенной разметкой
}

// Client - HTTP-клиент внешнего сервиса детекции опасностей
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient создает клиент сервиса детекции
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Classify отправляет снимок модели и возвращает метку опасности
// вместе с аннотированным изображением
func (c *Client) Classify(ctx context.Context, image []byte, filename string) (*Detection, error) {
	log := c.logger.WithFields(logrus.Fields{
		"adapter":  "classifier",
		"filename": filename,
	})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("classifier: create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("classifier: write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("classifier: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/detect", body)
	if err != nil {
		return nil, fmt.Errorf("classifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("classifier: API error: status %d: %s", resp.StatusCode, respBody)
	}

	var detectResp response
	if err := json.NewDecoder(resp.Body).Decode(&detectResp); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}

	// Пустой список детекций - отдельный исход, а не отказ сервиса
	if len(detectResp.Detections) == 0 {
		log.Debug("Model returned zero detections")
		return nil, ErrNoDetection
	}

	// Берем первый (наиболее уверенный) объект, как делает модель
	top := detectResp.Detections[0]
	detection := &Detection{
		Label:      top.Label,
		Confidence: top.Confidence,
	}

	if detectResp.AnnotatedImage != "" {
		annotated, err := base64.StdEncoding.DecodeString(detectResp.AnnotatedImage)
		if err != nil {
			return nil, fmt.Errorf("classifier: decode annotated image: %w", err)
		}
		detection.Annotated = annotated
	}

	log.WithField("label", detection.Label).Debug("Classification completed")
	return detection, nil
}

// Формат ответа сервиса детекции

type response struct {
	Detections     []detection `json:"detections"`
	AnnotatedImage string      `json:"annotated_image,omitempty"` // base64
}

type detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

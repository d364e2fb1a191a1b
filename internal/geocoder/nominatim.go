package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoResult возвращается, когда Nominatim ответил, но не смог
// сопоставить координатам никакой адрес
var ErrNoResult = errors.New("geocoder: no result for coordinates")

// Location - результат обратного геокодирования
type Location struct {
	Address  string // полный человекочитаемый адрес
	Locality string // город/населенный пункт для маршрутизации
}

// NominatimClient - клиент обратного геокодирования Nominatim
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewNominatimClient создает клиент Nominatim
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, logger *logrus.Logger) *NominatimClient {
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Resolve преобразует широту и долготу в адрес и населенный пункт.
// Координаты передаются сырыми строками, как их прислал клиент.
func (c *NominatimClient) Resolve(ctx context.Context, lat, lon string) (*Location, error) {
	log := c.logger.WithFields(logrus.Fields{
		"adapter": "geocoder",
		"lat":     lat,
		"lon":     lon,
	})

	params := url.Values{
		"format": {"jsonv2"},
		"lat":    {lat},
		"lon":    {lon},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocoder: create request: %w", err)
	}
	// Nominatim требует осмысленный User-Agent
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder: reverse request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geocoder: API error: status %d: %s", resp.StatusCode, body)
	}

	var nominatimResp response
	if err := json.NewDecoder(resp.Body).Decode(&nominatimResp); err != nil {
		return nil, fmt.Errorf("geocoder: decode response: %w", err)
	}

	// Nominatim сообщает о нерезолвимых координатах полем error в теле
	if nominatimResp.Error != "" || nominatimResp.DisplayName == "" {
		log.Debug("Nominatim returned no result")
		return nil, ErrNoResult
	}

	location := &Location{
		Address:  nominatimResp.DisplayName,
		Locality: nominatimResp.Address.locality(),
	}

	log.WithField("locality", location.Locality).Debug("Reverse geocoding completed")
	return location, nil
}

// Формат ответа Nominatim /reverse

type response struct {
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
	Error       string  `json:"error,omitempty"`
}

type address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
}

// locality выбирает населенный пункт по убыванию крупности.
// Если адрес нашелся, но населенного пункта в нем нет - "Unknown".
func (a address) locality() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	case a.Village != "":
		return a.Village
	default:
		return "Unknown"
	}
}

// Package weather предоставляет клиент провайдера погоды OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL это адрес публичного API OpenWeatherMap.
const DefaultBaseURL = "https://api.openweathermap.org"

// ErrMissingAPIKey возвращается, если файл секрета с ключом API пуст или не читается.
var ErrMissingAPIKey = errors.New("missing_owm_key")

// StatusError это неуспешный ответ провайдера.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("owm_http_%d", e.StatusCode)
}

// Main это блок main ответа.
type Main struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

// Wind это блок wind ответа.
type Wind struct {
	Speed *float64 `json:"speed"`
	Gust  *float64 `json:"gust"`
}

// Rain это блок rain ответа.
type Rain struct {
	OneHour *float64 `json:"1h"`
}

// Clouds это блок clouds ответа.
type Clouds struct {
	All *float64 `json:"all"`
}

// Condition это элемент массива weather.
type Condition struct {
	Main        *string `json:"main"`
	Description *string `json:"description"`
}

// Sys это блок sys ответа.
type Sys struct {
	Country *string `json:"country"`
}

// Observation это текущее наблюдение погоды в точке.
type Observation struct {
	Name    *string     `json:"name"`
	Main    Main        `json:"main"`
	Wind    Wind        `json:"wind"`
	Rain    *Rain       `json:"rain"`
	Clouds  Clouds      `json:"clouds"`
	Weather []Condition `json:"weather"`
	Sys     Sys         `json:"sys"`
}

// Client инкапсулирует HTTP-взаимодействие с провайдером погоды. Повторов нет:
// ошибка запроса сразу возвращается вызывающему.
type Client struct {
	baseURL    string
	keyPath    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создаёт клиент провайдера погоды. Ключ API читается из файла keyPath при каждом запросе.
func NewClient(baseURL, keyPath string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		keyPath: keyPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch запрашивает текущую погоду в точке lat/lon в метрических единицах.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (*Observation, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", key)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Info("owm fetch",
		zap.Int("status", resp.StatusCode),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var obs Observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &obs, nil
}

func (c *Client) apiKey() (string, error) {
	raw, err := os.ReadFile(c.keyPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingAPIKey, err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

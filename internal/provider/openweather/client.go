package openweather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gometeo/weather-aggregator/internal/model"
	"github.com/gometeo/weather-aggregator/internal/weather"
)

const (
	geocodePath  = "/geo/1.0/direct"
	currentPath  = "/data/2.5/weather"
	forecastPath = "/data/2.5/forecast"
)

// ProviderError - провайдер ответил не-2xx статусом
type ProviderError struct {
	StatusCode int
	Payload    []byte
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("openweather вернул статус %d", e.StatusCode)
}

// Details отдает тело ответа провайдера: JSON как есть, иначе строкой
func (e *ProviderError) Details() any {
	payload := bytes.TrimSpace(e.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return e.Error()
	}
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	return string(payload)
}

type ClientOption func(*Client)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("не задан base URL openweather")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("некорректный base URL %s: %w", baseURL, err)
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type geoResponse []struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type condition struct {
	Description string `json:"description"`
}

type currentResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []condition `json:"weather"`
}

type forecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []condition `json:"weather"`
	} `json:"list"`
}

// Geocode ищет координаты города, результат может быть пустым
func (c *Client) Geocode(ctx context.Context, query string, limit int) ([]model.Coordinates, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var resp geoResponse
	if err := c.get(ctx, geocodePath, params, &resp); err != nil {
		return nil, err
	}

	coords := make([]model.Coordinates, 0, len(resp))
	for _, r := range resp {
		coords = append(coords, model.Coordinates{Lat: r.Lat, Lon: r.Lon})
	}
	return coords, nil
}

func (c *Client) Current(ctx context.Context, coords model.Coordinates) (model.CurrentConditions, error) {
	var resp currentResponse
	if err := c.get(ctx, currentPath, coordParams(coords), &resp); err != nil {
		return model.CurrentConditions{}, err
	}
	if len(resp.Weather) == 0 {
		return model.CurrentConditions{}, fmt.Errorf("текущая погода для %s: %w", resp.Name, weather.ErrMalformedPayload)
	}

	return model.CurrentConditions{
		Location:    resp.Name,
		Temp:        resp.Main.Temp,
		Description: resp.Weather[0].Description,
	}, nil
}

// Forecast отдает не больше limit первых элементов прогноза, остальные не разбираются
func (c *Client) Forecast(ctx context.Context, coords model.Coordinates, limit int) ([]model.ForecastEntry, error) {
	var resp forecastResponse
	if err := c.get(ctx, forecastPath, coordParams(coords), &resp); err != nil {
		return nil, err
	}

	list := resp.List
	if limit >= 0 && len(list) > limit {
		list = list[:limit]
	}

	entries := make([]model.ForecastEntry, 0, len(list))
	for i, item := range list {
		if len(item.Weather) == 0 {
			return nil, fmt.Errorf("прогноз, элемент %d: %w", i, weather.ErrMalformedPayload)
		}
		entries = append(entries, model.ForecastEntry{
			Time:        item.DtTxt,
			Temp:        item.Main.Temp,
			Description: item.Weather[0].Description,
		})
	}
	return entries, nil
}

func coordParams(coords model.Coordinates) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("units", "metric")
	return params
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("ошибка разбора URL %s: %w", path, err)
	}
	params.Set("appid", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса %s: %w", path, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка запроса к openweather %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа %s: %w", path, err)
	}

	c.logger.Debug("Ответ openweather",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{StatusCode: resp.StatusCode, Payload: body}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("ошибка десериализации ответа %s: %w", path, err)
	}
	return nil
}

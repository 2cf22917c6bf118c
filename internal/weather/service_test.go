package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/gometeo/weather-aggregator/internal/model"
)

type fakeProvider struct {
	calls []string

	geoQuery string
	geoLimit int
	coords   []model.Coordinates
	geoErr   error

	current    model.CurrentConditions
	currentErr error
	currentAt  model.Coordinates

	forecast      []model.ForecastEntry
	forecastErr   error
	forecastLimit int
}

func (f *fakeProvider) Geocode(_ context.Context, query string, limit int) ([]model.Coordinates, error) {
	f.calls = append(f.calls, "geocode")
	f.geoQuery, f.geoLimit = query, limit
	return f.coords, f.geoErr
}

func (f *fakeProvider) Current(_ context.Context, coords model.Coordinates) (model.CurrentConditions, error) {
	f.calls = append(f.calls, "current")
	f.currentAt = coords
	return f.current, f.currentErr
}

func (f *fakeProvider) Forecast(_ context.Context, _ model.Coordinates, limit int) ([]model.ForecastEntry, error) {
	f.calls = append(f.calls, "forecast")
	f.forecastLimit = limit
	return f.forecast, f.forecastErr
}

type payloadErr struct{}

func (payloadErr) Error() string { return "401" }
func (payloadErr) Details() any  { return map[string]any{"cod": 401, "message": "Invalid API key"} }

func entries(n int) []model.ForecastEntry {
	out := make([]model.ForecastEntry, n)
	for i := range out {
		out[i] = model.ForecastEntry{
			Time:        fmt.Sprintf("2025-11-07 %02d:00:00", i*3),
			Temp:        float64(20 - i),
			Description: "clear",
		}
	}
	return out
}

func newAccra() *fakeProvider {
	return &fakeProvider{
		coords:   []model.Coordinates{{Lat: 5.6037, Lon: -0.187}, {Lat: 1, Lon: 1}},
		current:  model.CurrentConditions{Location: "Accra", Temp: 23.567, Description: "light rain & mist"},
		forecast: entries(1),
	}
}

func TestFetchSuccess(t *testing.T) {
	p := newAccra()
	agg := NewAggregator(p, slog.New(slog.DiscardHandler))

	res, err := agg.Fetch(context.Background(), "accra")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if res.City != "Accra" {
		t.Errorf("City = %q, want имя от провайдера Accra", res.City)
	}
	if res.Temperature != 23.567 {
		t.Errorf("Temperature = %v, want 23.567", res.Temperature)
	}
	if res.Weather != "light rain & mist" {
		t.Errorf("Weather = %q", res.Weather)
	}
	if len(res.Forecast) != 1 {
		t.Fatalf("len(Forecast) = %d, want 1", len(res.Forecast))
	}

	want := []string{"geocode", "current", "forecast"}
	if fmt.Sprint(p.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", p.calls, want)
	}
	if p.geoQuery != "accra" || p.geoLimit != 1 {
		t.Errorf("geocode(%q, %d), want (accra, 1)", p.geoQuery, p.geoLimit)
	}
	if p.currentAt != (model.Coordinates{Lat: 5.6037, Lon: -0.187}) {
		t.Errorf("current вызван с %v, want первое совпадение", p.currentAt)
	}
}

func TestFetchForecastCap(t *testing.T) {
	tests := []struct {
		name     string
		provided int
		want     int
	}{
		{"пустой", 0, 0},
		{"меньше лимита", 3, 3},
		{"ровно лимит", 5, 5},
		{"больше лимита", 7, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newAccra()
			p.forecast = entries(tt.provided)
			res, err := NewAggregator(p, slog.New(slog.DiscardHandler)).Fetch(context.Background(), "Accra")
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if res.Forecast == nil {
				t.Fatal("Forecast = nil, want пустой срез")
			}
			if len(res.Forecast) != tt.want {
				t.Fatalf("len(Forecast) = %d, want %d", len(res.Forecast), tt.want)
			}
			for i, e := range res.Forecast {
				if e != p.forecast[i] {
					t.Errorf("Forecast[%d] = %v, want %v", i, e, p.forecast[i])
				}
			}
			if p.forecastLimit != 5 {
				t.Errorf("limit = %d, want 5", p.forecastLimit)
			}
		})
	}
}

func TestFetchCityNotFound(t *testing.T) {
	p := &fakeProvider{}
	_, err := NewAggregator(p, slog.New(slog.DiscardHandler)).Fetch(context.Background(), "InvalidCity")

	if !errors.Is(err, ErrCityNotFound) {
		t.Fatalf("err = %v, want ErrCityNotFound", err)
	}
	if len(p.calls) != 1 {
		t.Errorf("calls = %v, want только geocode", p.calls)
	}
}

func TestFetchUpstreamFailures(t *testing.T) {
	network := errors.New("Network error")

	tests := []struct {
		name      string
		setup     func(p *fakeProvider)
		step      Step
		calls     int
		wantInMsg string
	}{
		{"geocode", func(p *fakeProvider) { p.geoErr = network }, StepGeocode, 1, "Network error"},
		{"current", func(p *fakeProvider) { p.currentErr = payloadErr{} }, StepCurrent, 2, ""},
		{"forecast", func(p *fakeProvider) { p.forecastErr = network }, StepForecast, 3, "Network error"},
		{"пустой weather", func(p *fakeProvider) {
			p.currentErr = fmt.Errorf("текущая погода: %w", ErrMalformedPayload)
		}, StepCurrent, 2, ErrMalformedPayload.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newAccra()
			tt.setup(p)

			_, err := NewAggregator(p, slog.New(slog.DiscardHandler)).Fetch(context.Background(), "Accra")

			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("err = %v, want *UpstreamError", err)
			}
			if upErr.Step != tt.step {
				t.Errorf("Step = %s, want %s", upErr.Step, tt.step)
			}
			if len(p.calls) != tt.calls {
				t.Errorf("calls = %v, want %d вызова", p.calls, tt.calls)
			}
			if upErr.Details() == nil {
				t.Error("Details() = nil")
			}
			if tt.wantInMsg != "" {
				msg, ok := upErr.Details().(string)
				if !ok || msg == "" {
					t.Fatalf("Details() = %#v, want строку", upErr.Details())
				}
				if !strings.Contains(msg, tt.wantInMsg) {
					t.Errorf("Details() = %q, want содержит %q", msg, tt.wantInMsg)
				}
			}
		})
	}
}

func TestUpstreamErrorProviderPayload(t *testing.T) {
	err := &UpstreamError{Step: StepCurrent, Err: fmt.Errorf("wrap: %w", payloadErr{})}
	d, ok := err.Details().(map[string]any)
	if !ok {
		t.Fatalf("Details() = %#v, want payload провайдера", err.Details())
	}
	if d["message"] != "Invalid API key" {
		t.Errorf("message = %v", d["message"])
	}
}

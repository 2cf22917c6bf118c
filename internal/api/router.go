package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gometeo/weather-aggregator/internal/api/handlers"
	"github.com/gometeo/weather-aggregator/internal/api/middleware"
)

// NewRouter собирает маршруты сервиса
func NewRouter(h *handlers.WeatherHandler, logger *slog.Logger) *mux.Router {
	// Сопоставляем по закодированному пути, город раскодирует хендлер
	router := mux.NewRouter().UseEncodedPath()
	router.NotFoundHandler = http.HandlerFunc(h.NotFound)

	// Liveness
	router.HandleFunc("/", h.Liveness).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// Weather endpoints
	api.HandleFunc("/weather/{city}/history", h.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/weather/{city}", h.GetWeather).Methods(http.MethodGet)

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.ContentType)

	return router
}

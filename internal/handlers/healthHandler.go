package handlers

import (
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/api"
)

const (
	serviceName    = "docqa"
	serviceVersion = "1.0.0"
)

// GetHandler godoc
// @Summary      Liveness
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       / [get]
func GetHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{Status: "healthy", Service: serviceName})
}

// HealthHandler godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   serviceVersion,
		Timestamp: time.Now().Unix(),
	})
}

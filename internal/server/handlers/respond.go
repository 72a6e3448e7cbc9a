package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/sitekeeper/pkg/api"
)

// sendJSON отправляет JSON ответ
func sendJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой.
// Пустой code заменяется текстом статуса.
func sendError(w http.ResponseWriter, logger *slog.Logger, code, message string, statusCode int) {
	if code == "" {
		code = http.StatusText(statusCode)
	}
	sendJSON(w, logger, api.ErrorResponse{Error: code, Message: message}, statusCode)
}

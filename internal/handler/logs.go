package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"birdcam/internal/logger"
)

// ShowLogsHandler serves one of the level log files as text/plain.
func ShowLogsHandler(logDir, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := filepath.Join(logDir, filename)

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + filename))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates one of the level log files.
func ClearLogsHandler(l *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := l.CleanLogs(filename); err != nil {
			l.Error("Failed to clear %s: %v", filename, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"birdcam/internal/config"
	"birdcam/internal/dto"
	"birdcam/internal/logger"
	"birdcam/internal/model"
	"birdcam/internal/repository"
	"birdcam/internal/service/storage"
)

const (
	defaultPageSize = 24
	maxPageSize     = 500
)

// ListEvidenceHandler returns a filtered, paginated list of indexed evidence.
// Query parameters: class, camera, after, before (RFC 3339 or YYYY-MM-DD), page, limit.
func ListEvidenceHandler(logger *logger.Logger, sink *storage.FileSink,
	imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)
		if limit > maxPageSize {
			limit = maxPageSize
		}

		filter := &model.ImageFilter{
			Camera: q.Get("camera"),
			Class:  q.Get("class"),
			After:  parseTime(q.Get("after")),
			Before: parseTime(q.Get("before")),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		images, err := imageRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying evidence: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := imageRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting evidence: %v", err)
			totalCount = len(images)
		}

		var totalSize int64
		if sink != nil {
			if totalSize, err = sink.DirectorySize(); err != nil {
				logger.Warning("Error getting evidence directory size: %v", err)
			}
		}

		var detections map[int64][]model.DetectionRecord
		if detectionRepo != nil {
			ids := make([]int64, len(images))
			for i, img := range images {
				ids[i] = img.ID
			}
			if detections, err = detectionRepo.GetByImageIDs(ids); err != nil {
				logger.Error("Error getting detections: %v", err)
			}
		}

		infos := make([]dto.EvidenceInfo, 0, len(images))
		for _, img := range images {
			infos = append(infos, dto.EvidenceInfo{
				ID:         img.ID,
				Name:       img.Filename,
				Camera:     img.Camera,
				Class:      img.Class,
				Timestamp:  img.Timestamp,
				Size:       img.FileSize,
				URL:        "/api/evidence/view?name=" + url.QueryEscape(img.Filename),
				Detections: detections[img.ID],
			})
		}

		writeJSON(w, logger, dto.EvidenceList{
			Images:      infos,
			Total:       totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
			SizeBytes:   totalSize,
		})
	}
}

// EvidenceStatsHandler returns index statistics.
func EvidenceStatsHandler(logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := imageRepo.GetStats()
		if err != nil {
			logger.Error("Error reading evidence stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, stats)
	}
}

// ViewEvidenceHandler serves a single evidence image named by the "name" parameter.
func ViewEvidenceHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Query().Get("name"))
		if name == "." || name == string(filepath.Separator) {
			http.Error(w, "name parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.OutputDir, name))
	}
}

// DeleteEvidenceHandler removes an evidence image from disk and from the index.
func DeleteEvidenceHandler(cfg *config.Config, logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := filepath.Base(r.URL.Query().Get("name"))
		if name == "." || name == string(filepath.Separator) {
			http.Error(w, "name parameter is required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(cfg.OutputDir, name)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}
		if err := imageRepo.DeleteByFilename(name); err != nil {
			logger.Error("Failed to delete %s from index: %v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted evidence: %s", name)
		writeJSON(w, logger, map[string]string{"status": "deleted", "name": name})
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts s to a positive int or returns def.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseTime accepts RFC 3339 or a plain date (YYYY-MM-DD, local time). Invalid input
// yields the zero time, which disables the bound.
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

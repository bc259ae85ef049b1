package server

import (
	"net/http"
	"strconv"

	"github.com/avenlon/sitepulse/errors"
	"github.com/avenlon/sitepulse/scan"
)

// StartScanRequest is the body of POST /api/scan. An empty post_types list
// means the configured defaults.
type StartScanRequest struct {
	PostTypes []string `json:"post_types"`
}

// HandleScan handles requests to /api/scan
// POST: Start a new scan
func (s *Server) HandleScan(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req StartScanRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &req); err != nil {
			return
		}
	}

	snap, err := s.engine.Start(req.PostTypes, scan.TriggerManual)
	if err != nil {
		s.writeScanError(w, err)
		return
	}

	s.logger.Infow("Scan started via API",
		"job_id", shortID(snap.JobID),
		"post_types", snap.PostTypes,
		"total", snap.Total)

	writeJSON(w, http.StatusAccepted, snap)
}

// writeScanError maps engine sentinels to HTTP statuses.
func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scan.ErrScanAlreadyRunning):
		writeError(w, http.StatusConflict, "A scan is already running")
	case errors.Is(err, scan.ErrInvalidPostTypes):
		writeError(w, http.StatusBadRequest, "No valid post types requested")
	case errors.Is(err, scan.ErrNoPostsFound):
		writeError(w, http.StatusNotFound, "No posts found for requested types")
	default:
		s.logger.Errorw("Scan request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ScanStatusResponse is the body of GET /api/scan/status. Job and LastScan
// are each omitted when absent; Running alone is always present.
type ScanStatusResponse struct {
	Running  bool             `json:"running"`
	Job      *scan.Snapshot   `json:"job,omitempty"`
	LastScan *scan.ScanRecord `json:"last_scan,omitempty"`
}

// HandleScanStatus handles requests to /api/scan/status
// GET: Current scan progress plus the last completed scan
func (s *Server) HandleScanStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	snap, lastRun, err := s.engine.Status()
	if err != nil {
		s.logger.Errorw("Failed to load scan status", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ScanStatusResponse{
		Running:  snap != nil,
		Job:      snap,
		LastScan: lastRun,
	})
}

// HandleScanDryRun handles requests to /api/scan/dry-run
// POST: Report scan coverage without starting one
func (s *Server) HandleScanDryRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req StartScanRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &req); err != nil {
			return
		}
	}

	res, err := s.engine.DryRun(req.PostTypes)
	if err != nil {
		s.writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleScanHistory handles requests to /api/scan/history
// GET: List scan history, newest first (optional ?limit=N)
func (s *Server) HandleScanHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	history, err := s.engine.Store().History()
	if err != nil {
		s.logger.Errorw("Failed to load scan history", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		if limit < len(history) {
			history = history[:limit]
		}
	}

	if history == nil {
		history = []scan.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"count":   len(history),
	})
}

// HandleScanHistoryRecord handles requests to /api/scan/history/{id}
// GET: Fetch one history record
// DELETE: Remove one history record
func (s *Server) HandleScanHistoryRecord(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/scan/history/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing scan ID")
		return
	}
	scanID := pathParts[0]

	if !requireMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.engine.Store().GetScanRecord(scanID)
		if err != nil {
			if errors.IsNotFoundError(err) {
				writeError(w, http.StatusNotFound, "Scan record not found")
				return
			}
			s.logger.Errorw("Failed to load scan record", "scan_id", scanID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodDelete:
		deleted, err := s.engine.Store().DeleteScanRecord(scanID)
		if err != nil {
			s.logger.Errorw("Failed to delete scan record", "scan_id", scanID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "Scan record not found")
			return
		}
		s.logger.Infow("Scan record deleted", "scan_id", shortID(scanID))
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

// HandleSettings handles requests to /api/settings
// GET: Current scheduling settings (defaults-merged)
// PUT: Replace settings and reconcile the daily timer
func (s *Server) HandleSettings(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.engine.Store().Settings()
		if err != nil {
			s.logger.Errorw("Failed to load settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, settings)

	case http.MethodPut:
		var settings scan.Settings
		if err := readJSON(w, r, &settings); err != nil {
			return
		}
		if settings.AutoScanEnabled {
			if _, err := scan.NextOccurrence(s.engine.Now(), settings.ScheduledTime); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid scheduled_time, expected HH:MM")
				return
			}
		}

		if err := s.engine.Store().SaveSettings(settings); err != nil {
			s.logger.Errorw("Failed to save settings", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if err := s.engine.MaybeScheduleDailyEvent(); err != nil {
			s.logger.Errorw("Failed to reconcile daily schedule", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		s.logger.Infow("Settings updated",
			"auto_scan_enabled", settings.AutoScanEnabled,
			"scheduled_time", settings.ScheduledTime)
		writeJSON(w, http.StatusOK, settings)
	}
}

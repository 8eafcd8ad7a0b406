// ABOUTME: Handlers for patient chart CRUD, clinic profile, and backup
// ABOUTME: All operations are scoped to the authenticated account

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sjoekim64/dxchart/internal/store"
)

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.charts.ListByUser(r.Context(), requestAccount(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSaveChart(w http.ResponseWriter, r *http.Request) {
	var rec store.ChartRecord
	if !decodeJSON(w, r, &rec) {
		return
	}
	rec.UserID = requestAccount(r).ID

	saved, err := s.charts.Save(r.Context(), &rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListChartsByFileNo(w http.ResponseWriter, r *http.Request) {
	fileNo := chi.URLParam(r, "fileNo")

	recs, err := s.charts.ListByFileNo(r.Context(), requestAccount(r).ID, fileNo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	fileNo := chi.URLParam(r, "fileNo")
	date := r.URL.Query().Get("date")

	if err := s.charts.Delete(r.Context(), requestAccount(r).ID, fileNo, date); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleDeleteChartByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid chart id")
		return
	}

	if err := s.charts.DeleteByID(r.Context(), requestAccount(r).ID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleGetClinic(w http.ResponseWriter, r *http.Request) {
	profile, err := s.charts.GetClinicInfo(r.Context(), requestAccount(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSaveClinic(w http.ResponseWriter, r *http.Request) {
	var update store.ClinicUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	profile, err := s.charts.SaveClinicInfo(r.Context(), requestAccount(r).ID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.charts.Export(r.Context(), requestAccount(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="dxchart-backup.json"`)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var doc store.BackupDocument
	if !decodeJSON(w, r, &doc) {
		return
	}

	restored, err := s.charts.Restore(r.Context(), requestAccount(r).ID, &doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"restored": restored})
}

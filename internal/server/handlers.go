package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/padi/internal/core"
	"github.com/agenthands/padi/internal/core/engine"
	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
	"github.com/agenthands/padi/internal/store"
)

const (
	msgBadRequest     = "Format permintaan tidak valid"
	msgBodyTooLarge   = "Ukuran permintaan terlalu besar"
	msgUnavailable    = "Basis pengetahuan sedang tidak tersedia, silakan coba lagi"
	msgInternal       = "Terjadi kesalahan pada server"
	msgUserRequired   = "Header X-User-ID wajib diisi"
	msgForbidden      = "Anda tidak memiliki akses ke riwayat ini"
	msgNotFound       = "Data tidak ditemukan"
	msgBadCertaintyID = "ID gejala pada certainty_values tidak valid"
)

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API is running"})
}

func (s *Server) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.KB.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": s.cfg.Store.Driver})
}

func (s *Server) StartDiagnosis(c *gin.Context) {
	var req DiagnosisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(c, http.StatusRequestEntityTooLarge, msgBodyTooLarge, err)
			return
		}
		s.respondError(c, http.StatusBadRequest, msgBadRequest, err)
		return
	}

	certainty, err := parseCertainty(req.CertaintyValues)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, msgBadCertaintyID, err)
		return
	}

	res, err := s.Expert.Diagnose(c.Request.Context(), core.DiagnoseRequest{
		UserID:     c.GetHeader(HeaderUserID),
		SymptomIDs: req.SymptomIDs,
		Certainty:  certainty,
		ClientIP:   c.ClientIP(),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDiagnosisResponse(res))
}

func (s *Server) ListSymptoms(c *gin.Context) {
	snap, err := s.KB.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, unavailable(err))
		return
	}
	symptoms := append([]model.Symptom{}, snap.Symptoms...)
	kb.SortSymptoms(symptoms)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": symptoms})
}

func (s *Server) ListDiseases(c *gin.Context) {
	snap, err := s.KB.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, unavailable(err))
		return
	}
	diseases := append([]model.Disease{}, snap.Diseases...)
	kb.SortDiseases(diseases)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": diseases})
}

// GetDisease returns the disease with every symptom its rules reference.
func (s *Server) GetDisease(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, msgBadRequest, err)
		return
	}
	snap, err := s.KB.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, unavailable(err))
		return
	}
	disease, err := snap.Disease(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	index := snap.SymptomIndex()
	seen := map[int64]bool{}
	symptoms := []model.Symptom{}
	rules := []model.Rule{}
	for _, r := range snap.Rules {
		if r.DiseaseID != id {
			continue
		}
		rules = append(rules, r)
		for _, sid := range r.SymptomIDs {
			if sym, ok := index[sid]; ok && !seen[sid] {
				seen[sid] = true
				symptoms = append(symptoms, sym)
			}
		}
	}
	kb.SortSymptoms(symptoms)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"disease":  disease,
		"symptoms": symptoms,
		"rules":    rules,
	}})
}

func (s *Server) ListHistory(c *gin.Context) {
	userID := c.GetHeader(HeaderUserID)
	if userID == "" {
		s.respondError(c, http.StatusUnauthorized, msgUserRequired, nil)
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	page, perPage, _ = store.Page(page, perPage)

	items, total, err := s.Backend.ListDiagnoses(c.Request.Context(), userID, page, perPage)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": HistoryPage{
		Items:   nonNil(items),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}})
}

func (s *Server) GetHistory(c *gin.Context) {
	userID := c.GetHeader(HeaderUserID)
	if userID == "" {
		s.respondError(c, http.StatusUnauthorized, msgUserRequired, nil)
		return
	}
	rec, err := s.Backend.GetDiagnosis(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if rec.Expired(time.Now()) {
		s.respondError(c, http.StatusNotFound, msgNotFound, nil)
		return
	}
	if rec.UserID != userID {
		s.respondError(c, http.StatusForbidden, msgForbidden, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

// fail maps a service error onto its HTTP status.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		inputErr *engine.InputError
		limitErr *core.LimitError
	)
	switch {
	case errors.As(err, &inputErr):
		s.respondError(c, http.StatusBadRequest, inputErr.Message, err)
	case errors.As(err, &limitErr):
		c.Error(err)
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: limitErr.Error(), LimitReached: true})
	case errors.Is(err, engine.ErrInvalidInput):
		s.respondError(c, http.StatusBadRequest, msgBadRequest, err)
	case errors.Is(err, engine.ErrKnowledgeBaseUnavailable):
		s.respondError(c, http.StatusServiceUnavailable, msgUnavailable, err)
	case errors.Is(err, kb.ErrNotFound):
		s.respondError(c, http.StatusNotFound, msgNotFound, err)
	default:
		s.logger.Error("request failed", zap.String("request_id", c.GetString(ctxRequestID)), zap.Error(err))
		s.respondError(c, http.StatusInternalServerError, msgInternal, err)
	}
}

func (s *Server) respondError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		c.Error(err)
	}
	c.JSON(status, ErrorResponse{Message: message})
}

func unavailable(err error) error {
	if errors.Is(err, engine.ErrKnowledgeBaseUnavailable) {
		return err
	}
	return errors.Join(engine.ErrKnowledgeBaseUnavailable, err)
}

func parseCertainty(values map[string]float64) (map[int64]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[int64]float64, len(values))
	for k, v := range values {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

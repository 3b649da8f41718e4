package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

type pingHandler struct {
	cfg      *config.Config
	store    store.Store
	ingestor *ingest.Ingestor
	log      *zap.Logger
}

func (h *pingHandler) success(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ingest.ActionSuccess, nil)
}

func (h *pingHandler) start(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ingest.ActionStart, nil)
}

func (h *pingHandler) fail(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ingest.ActionFail, nil)
}

// exitStatus treats the ping as a reported process exit: zero is success,
// anything else a failure.
func (h *pingHandler) exitStatus(w http.ResponseWriter, r *http.Request) {
	status, err := strconv.Atoi(chi.URLParam(r, "exitstatus"))
	if err != nil || status > 255 {
		http.Error(w, "invalid exit status", http.StatusBadRequest)
		return
	}

	action := ingest.ActionSuccess
	if status > 0 {
		action = ingest.ActionFail
	}
	h.handle(w, r, action, &status)
}

func (h *pingHandler) handle(w http.ResponseWriter, r *http.Request, action string, exitStatus *int) {
	code := chi.URLParam(r, "code")
	if _, err := uuid.Parse(code); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	check, err := h.store.CheckByCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("check lookup failed", zap.String("code", code), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.PingBodyLimit))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	err = h.ingestor.Ingest(r.Context(), check, ingest.Options{
		Action:     action,
		RemoteAddr: clientIP(r),
		Scheme:     scheme,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		ExitStatus: exitStatus,
		Body:       body,
	})
	if err != nil {
		h.log.Error("ping ingestion failed",
			zap.String("code", code), zap.String("action", action), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Write([]byte("OK"))
}

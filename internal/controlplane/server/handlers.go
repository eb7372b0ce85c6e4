package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/copytrade/internal/copytrade"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	stopTimeout        = 10 * time.Second
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	wasRunning := s.ctl.Running()
	if err := s.ctl.Start(r.Context()); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, copytrade.ErrStopInProgress) {
			code = http.StatusConflict
		}
		writeError(w, code, fmt.Sprintf("start: %v", err))
		return
	}
	log.Infof("🎛️ [控制面] start 请求: changed=%v", !wasRunning)
	writeJSON(w, http.StatusOK, map[string]any{"changed": !wasRunning, "status": s.ctl.Status()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	wasRunning := s.ctl.Running()
	ctx, cancel := context.WithTimeout(r.Context(), stopTimeout)
	defer cancel()
	if err := s.ctl.Stop(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("stop: %v", err))
		return
	}
	log.Infof("🎛️ [控制面] stop 请求: changed=%v", wasRunning)
	writeJSON(w, http.StatusOK, map[string]any{"changed": wasRunning, "status": s.ctl.Status()})
}

type copyingRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleCopying(w http.ResponseWriter, r *http.Request) {
	var req copyingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}
	s.ctl.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": s.ctl.Enabled()})
}

func (s *Server) handleReplications(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	items, err := s.ctl.Recent(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("ledger: %v", err))
		return
	}
	if items == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Serve(w, r); err != nil {
		log.Warnf("⚠️ [控制面] websocket 升级失败: %v", err)
	}
}

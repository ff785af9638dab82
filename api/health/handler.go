// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import (
	"net/http"

	"github.com/luxfi/modality/api"
)

// Handler serves a Checker's result as a JSON HTTP response, 200 when
// healthy and 503 otherwise.
type Handler struct {
	checker Checker
}

// NewHandler returns an http.Handler wrapping checker.
func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, err := h.checker.HealthCheck(r.Context())
	if err != nil {
		_ = api.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	status := http.StatusOK
	if report, ok := result.(Health); ok && !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	_ = api.WriteJSON(w, status, result)
}

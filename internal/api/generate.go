// ABOUTME: Handler for chart narrative text generation
// ABOUTME: Proxies prompts to the configured generation backend

package api

import (
	"net/http"

	"github.com/sjoekim64/dxchart/internal/textgen"
)

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
		JSON   bool   `json:"json"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeErrorMsg(w, http.StatusBadRequest, "prompt is required")
		return
	}

	text, err := s.generator.Generate(r.Context(), req.Prompt, textgen.Options{JSON: req.JSON})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

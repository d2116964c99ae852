package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/submit.html
var templateFS embed.FS

var submitTemplate = template.Must(template.ParseFS(templateFS, "templates/submit.html"))

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := submitTemplate.Execute(w, map[string]int64{"MaxUpload": h.maxUpload >> 20}); err != nil {
		LoggerFrom(r.Context(), h.logger).Error("failed to render form", zap.Error(err))
	}
}

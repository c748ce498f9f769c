package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/crzliang/gzbot/internal/notice"
)

// PreviewRequest describes a notice to render without broadcasting it.
// Label is free text such as "一血通知"; it is classified by keyword.
type PreviewRequest struct {
	Label       string    `json:"label"`
	Payload     string    `json:"payload"`
	PublishedAt time.Time `json:"publishedAt,omitzero"`
}

type PreviewResponse struct {
	Kind       string `json:"kind"`
	Message    string `json:"message,omitempty"`
	Fallback   bool   `json:"fallback"`
	Suppressed bool   `json:"suppressed"`
}

func handlePreview(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Label == "" {
			writeError(w, http.StatusBadRequest, "label is required")
			return
		}
		if req.PublishedAt.IsZero() {
			req.PublishedAt = time.Now()
		}

		kind := notice.ParseKind(req.Label)
		ev := notice.Event{
			Kind:        kind,
			Label:       kind.Label(),
			Payload:     req.Payload,
			PublishedAt: req.PublishedAt,
		}
		if kind == notice.KindUnknown {
			ev.Label = req.Label
		}

		resp := PreviewResponse{Kind: kind.String()}
		msg, err := deps.Renderer.Format(r.Context(), ev)
		switch {
		case err != nil:
			logger.Debug("preview fell back", "kind", kind, "error", err)
			resp.Message = deps.Renderer.Fallback(ev)
			resp.Fallback = true
		case msg == "":
			resp.Suppressed = true
		default:
			resp.Message = msg
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

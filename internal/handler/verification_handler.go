package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"blog-service/internal/verification"
)

// VerificationHandler exposes the image captcha and SMS code endpoints
type VerificationHandler struct {
	coordinator *verification.Coordinator
	logger      *zap.Logger
}

func NewVerificationHandler(coordinator *verification.Coordinator, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// RegisterRoutes registers the verification routes
func (h *VerificationHandler) RegisterRoutes(router chi.Router) {
	router.Route("/verification", func(r chi.Router) {
		r.Get("/image", h.GetImageCode)
		r.Get("/sms", h.GetSmsCode)
	})
}

// GetImageCode issues a fresh captcha image bound to the client-supplied
// uuid. Requesting again with the same uuid replaces the stored text.
func (h *VerificationHandler) GetImageCode(w http.ResponseWriter, r *http.Request) {
	uuid := r.URL.Query().Get("uuid")

	image, err := h.coordinator.IssueImageChallenge(r.Context(), uuid)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(image); err != nil {
		h.logger.Warn("failed to write captcha image", zap.Error(err))
	}
}

// GetSmsCode validates the captcha answer and dispatches an SMS code to
// the mobile number. The response never carries the code itself.
func (h *VerificationHandler) GetSmsCode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mobile := query.Get("mobile")
	imageCode := query.Get("image_code")
	uuid := query.Get("uuid")

	if err := h.coordinator.IssueSmsChallenge(r.Context(), mobile, imageCode, uuid); err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, nil)
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"blog-service/internal/model"
	"blog-service/internal/service"
)

// AccountHandler handles registration, login and profile requests
type AccountHandler struct {
	accounts     *service.AccountService
	cookieSecure bool
	logger       *zap.Logger
}

func NewAccountHandler(accounts *service.AccountService, cookieSecure bool, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// RegisterRoutes registers all account routes
func (h *AccountHandler) RegisterRoutes(router chi.Router) {
	router.Route("/accounts", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/password/reset", h.ResetPassword)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(RequireSession(h.accounts))
			r.Post("/logout", h.Logout)
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
		})
	})
}

type loginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type profileResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Mobile    string    `json:"mobile,omitempty"`
	Bio       string    `json:"bio"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, "invalid request body")
		return
	}

	user, session, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session, h.accounts.SessionTTL(false))
	writeJSON(w, http.StatusCreated, Response{
		Code:   CodeOK,
		Errmsg: "ok",
		Data: map[string]string{
			"user_id":  user.UserID,
			"username": user.Username,
		},
	})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, "invalid request body")
		return
	}

	user, session, err := h.accounts.Login(r.Context(), req.Mobile, req.Password, req.Remember)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session, h.accounts.SessionTTL(req.Remember))
	writeOK(w, map[string]string{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	if err := h.accounts.Logout(r.Context(), session.SessionID); err != nil {
		h.logger.Warn("failed to invalidate session",
			zap.String("session_id", session.SessionID),
			zap.Error(err))
	}

	h.clearSessionCookie(w)
	writeOK(w, nil)
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, "invalid request body")
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), &req); err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w, nil)
}

func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	user, err := h.accounts.GetProfile(r.Context(), session)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	profile := profileResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		Bio:       user.Bio,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	}
	if mobile, err := h.accounts.Mobile(r.Context(), user); err == nil {
		profile.Mobile = maskMobile(mobile)
	} else {
		h.logger.Warn("failed to decrypt mobile for profile",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}

	writeOK(w, profile)
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req service.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, "invalid request body")
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), session, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, profileResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		Bio:       user.Bio,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	})
}

func (h *AccountHandler) setSessionCookie(w http.ResponseWriter, session *model.Session, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.SessionID,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AccountHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// maskMobile hides the middle digits of a mobile number for display
func maskMobile(mobile string) string {
	if len(mobile) != 11 {
		return mobile
	}
	return mobile[:3] + "****" + mobile[7:]
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"blog-service/internal/service"
)

// ContentHandler serves categories, articles, comments and search
type ContentHandler struct {
	content  *service.ContentService
	accounts *service.AccountService
	logger   *zap.Logger
}

func NewContentHandler(content *service.ContentService, accounts *service.AccountService, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		content:  content,
		accounts: accounts,
		logger:   logger,
	}
}

// RegisterRoutes registers all content routes
func (h *ContentHandler) RegisterRoutes(router chi.Router) {
	router.Get("/categories", h.ListCategories)
	router.Get("/categories/{categoryID}/articles", h.ListArticles)

	router.Route("/articles", func(r chi.Router) {
		r.Get("/hot", h.HotArticles)
		r.Get("/search", h.SearchArticles)
		r.Get("/{articleID}", h.GetArticle)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(h.accounts))
			r.Post("/", h.CreateArticle)
			r.Post("/{articleID}/comments", h.CreateComment)
		})
	})
}

func (h *ContentHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.content.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w, categories)
}

func (h *ContentHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")
	pageNum, pageSize := pagingParams(r)

	page, err := h.content.GetCategoryPage(r.Context(), categoryID, pageNum, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w, page)
}

func (h *ContentHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")
	pageNum, pageSize := pagingParams(r)

	detail, err := h.content.GetArticleDetail(r.Context(), articleID, pageNum, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w, detail)
}

func (h *ContentHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req service.CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, "invalid request body")
		return
	}

	article, err := h.content.CreateArticle(r.Context(), session, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Code: CodeOK, Errmsg: "ok", Data: article})
}

type createCommentRequest struct {
	Content string `json:"content"`
}

func (h *ContentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	articleID := chi.URLParam(r, "articleID")

	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeNecessaryParam, "invalid request body")
		return
	}

	comment, err := h.content.CreateComment(r.Context(), session, articleID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Code: CodeOK, Errmsg: "ok", Data: comment})
}

func (h *ContentHandler) HotArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.content.HotArticles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w, articles)
}

func (h *ContentHandler) SearchArticles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	articles, err := h.content.SearchArticles(r.Context(), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOK(w, articles)
}

func pagingParams(r *http.Request) (int, int) {
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page_num"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return pageNum, pageSize
}

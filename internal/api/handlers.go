package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skillsync/internal/auth"
	"skillsync/internal/service/resume"
	"skillsync/internal/service/users"
	"skillsync/internal/upload"
)

// Handler wires HTTP routes to the user and resume services.
type Handler struct {
	users   *users.Service
	auth    *auth.Service
	resumes *resume.Service
	gate    *upload.Gate
}

// NewHandler constructs a Handler instance.
func NewHandler(usersService *users.Service, authService *auth.Service, resumeService *resume.Service, gate *upload.Gate) *Handler {
	return &Handler{
		users:   usersService,
		auth:    authService,
		resumes: resumeService,
		gate:    gate,
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		respondError(c, http.StatusUnauthorized, "Authorization required")
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Route not found")
	})

	api := router.Group("/api")
	api.GET("/health", h.health)
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)

	protected := api.Group("")
	protected.Use(h.auth.Guard()...)
	protected.POST("/users/logout", h.logoutUser)

	resumes := protected.Group("/resume")
	resumes.POST("/upload", h.uploadResume)
	resumes.GET("", h.listResumes)
	resumes.GET("/:id", h.getResume)
	resumes.PUT("/:id", h.updateResume)
	resumes.DELETE("/:id", h.deleteResume)
	resumes.POST("/:id/reanalyze", h.reanalyzeResume)
}

func (h *Handler) health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"}, "")
}

// User create&login interface
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.users.RegisterUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	}, "User registered successfully")
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		fail(c, err)
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	respond(c, http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"auth_token": authToken,
		"csrf_token": csrfToken,
	}, "Logged in")
}

func (h *Handler) logoutUser(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	respond(c, http.StatusOK, nil, "Logged out")
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/abduss/filestore/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteConfig carries the cookie and redirect settings the handlers need.
type RouteConfig struct {
	CookieName   string
	CookieSecure bool
	LoginPath    string
	SessionTTL   time.Duration
}

// RegisterRoutes mounts the account endpoints. gate protects /whoami.
func RegisterRoutes(router gin.IRouter, gate gin.HandlerFunc, service *Service, cfg RouteConfig) {
	handler := &httpHandler{service: service, cfg: cfg}
	router.POST("/register", handler.register)
	router.GET("/activate", handler.activate)
	router.POST("/login", handler.login)
	router.GET("/logout", handler.logout)
	router.POST("/logout", handler.logout)
	router.GET("/whoami", gate, handler.whoami)
}

type httpHandler struct {
	service *Service
	cfg     RouteConfig
}

type credentialsRequest struct {
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

func (h *httpHandler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	err := h.service.Register(c.Request.Context(), RegisterInput{Email: req.Email, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email and a password of 8 to 72 characters are required"})
		default:
			logger.FromContext(c).Error("register", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "activation_pending"})
}

func (h *httpHandler) activate(c *gin.Context) {
	user, err := h.service.Activate(c.Request.Context(), c.Query("token"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidActivationToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired activation token"})
		case errors.Is(err, ErrEmailAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "account already active"})
		default:
			logger.FromContext(c).Error("activate", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to activate account"})
		}
		return
	}

	if WantsJSON(c.Request) {
		c.JSON(http.StatusCreated, gin.H{"username": user.Email})
		return
	}
	c.Redirect(http.StatusFound, h.cfg.LoginPath)
}

func (h *httpHandler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		case errors.Is(err, ErrActivationPending):
			c.JSON(http.StatusForbidden, gin.H{"error": "confirm your registration via the emailed link first"})
		case errors.Is(err, ErrInactiveUser):
			c.JSON(http.StatusForbidden, gin.H{"error": "account is not active"})
		default:
			logger.FromContext(c).Error("login", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		}
		return
	}

	h.setSessionCookie(c, result.Session.ID, int(h.cfg.SessionTTL.Seconds()))
	c.Header(SessionHeader, result.Session.ID)
	c.JSON(http.StatusOK, gin.H{
		"sessionId": result.Session.ID,
		"username":  result.User.Email,
	})
}

func (h *httpHandler) logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), SessionID(c, h.cfg.CookieName)); err != nil {
		logger.FromContext(c).Warn("logout", zap.Error(err))
	}
	h.setSessionCookie(c, "", -1)

	if WantsJSON(c.Request) {
		c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
		return
	}
	c.Redirect(http.StatusFound, h.cfg.LoginPath)
}

func (h *httpHandler) whoami(c *gin.Context) {
	principal, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": principal.Email})
}

func (h *httpHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, value, maxAge, "/", "", h.cfg.CookieSecure, true)
}

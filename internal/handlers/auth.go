package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"artistsync/internal/handlers/render"
	"artistsync/internal/services"
	"artistsync/internal/session"
)

// CookieHeader carries a raw streaming-service cookie as an alternative to a session token
const CookieHeader = "X-Netease-Cookie"

// CredentialMiddleware resolves the caller's credential from a Bearer session
// token or a raw cookie header and stores it in the request context. Requests
// without a usable credential pass through without one.
func CredentialMiddleware(codec *session.TokenCodec, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cred *session.Credential
		if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && token != "" {
			parsed, err := codec.Parse(strings.TrimSpace(token))
			if err != nil {
				slog.Debug("Rejected session token", "error", err)
			} else {
				cred = parsed
			}
		}
		if cred == nil {
			if cookie := c.GetHeader(CookieHeader); cookie != "" {
				cred = session.NewCredential(cookie, ttl)
			}
		}
		if cred != nil {
			c.Request = c.Request.WithContext(session.WithCredential(c.Request.Context(), cred))
		}
		c.Next()
	}
}

// RequireCredential aborts with 401 unless the request carries a valid credential
func RequireCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := credentialFrom(c).Validate(time.Now()); err != nil {
			render.Unauthorized(c, "Login required")
			return
		}
		c.Next()
	}
}

func credentialFrom(c *gin.Context) *session.Credential {
	cred, _ := session.FromContext(c.Request.Context())
	return cred
}

// AuthHandler serves the QR login flow
type AuthHandler struct {
	login services.LoginProvider
	codec *session.TokenCodec
	ttl   time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(login services.LoginProvider, codec *session.TokenCodec, ttl time.Duration) *AuthHandler {
	return &AuthHandler{login: login, codec: codec, ttl: ttl}
}

// QRCheckResponse reports the login state; Token is set once the login is confirmed
type QRCheckResponse struct {
	Code      int        `json:"code"`
	Message   string     `json:"message,omitempty"`
	Cookie    string     `json:"cookie,omitempty"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// GetQR handles GET /api/auth/qr
func (h *AuthHandler) GetQR(c *gin.Context) {
	ctx := c.Request.Context()
	key, err := h.login.LoginQRKey(ctx)
	if err != nil {
		render.ServiceError(c, "Failed to start QR login", err)
		return
	}
	qr, err := h.login.LoginQRCreate(ctx, key)
	if err != nil {
		render.ServiceError(c, "Failed to create QR code", err)
		return
	}
	c.JSON(http.StatusOK, qr)
}

// CheckQR handles GET /api/auth/check?key=
func (h *AuthHandler) CheckQR(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		render.BadRequest(c, "Query parameter 'key' is required", nil)
		return
	}

	result, err := h.login.LoginQRCheck(c.Request.Context(), key)
	if err != nil {
		render.ServiceError(c, "Failed to check QR login", err)
		return
	}

	resp := QRCheckResponse{Code: result.Code, Message: result.Message}
	if result.Code == services.QRStatusConfirmed && result.Cookie != "" {
		cred := session.NewCredential(result.Cookie, h.ttl)
		token, err := h.codec.Issue(cred)
		if err != nil {
			render.ServiceError(c, "Failed to issue session token", err)
			return
		}
		resp.Cookie = cred.Cookie
		resp.Token = token
		resp.ExpiresAt = &cred.ExpiresAt
		slog.Info("QR login confirmed", "expiresAt", cred.ExpiresAt)
	}
	c.JSON(http.StatusOK, resp)
}

// GetUser handles GET /api/user
func (h *AuthHandler) GetUser(c *gin.Context) {
	account, err := h.login.GetUserAccount(c.Request.Context(), credentialFrom(c))
	if err != nil {
		render.ServiceError(c, "Failed to load user account", err)
		return
	}
	c.JSON(http.StatusOK, account)
}

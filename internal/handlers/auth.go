package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fileharbor/apiserver/internal/oauth"
	"github.com/fileharbor/apiserver/internal/services"
	"github.com/fileharbor/apiserver/internal/store"
	"github.com/fileharbor/apiserver/internal/token"
	"github.com/fileharbor/apiserver/types"
)

// AuthHandler provides OAuth sign-in, profile, and promotion endpoints.
type AuthHandler struct {
	userService *services.UserService
	exchanger   oauth.Exchanger
	codec       *token.Codec
	logger      zerolog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, exchanger oauth.Exchanger, codec *token.Codec, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		exchanger:   exchanger,
		codec:       codec,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/login", handler.Login)
	r.Get("/login-url", handler.LoginURL)
	r.Get("/callback", handler.Callback)
	r.With(authMiddleware).Get("/profile", handler.Profile)
	r.With(authMiddleware).Post("/promote-to-admin", handler.PromoteToAdmin)
}

// RequireAuth enforces bearer-token authentication and stores the
// verified claims in the request context.
func RequireAuth(codec *token.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := codec.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits only requests whose token carries one of the
// listed roles. There is no hierarchy: a route lists every role it
// accepts.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := claimsFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			for _, role := range roles {
				if strings.EqualFold(claims.Role, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}

// Login redirects the client to the provider consent screen.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.signInURL()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build sign-in url")
		writeError(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// LoginURL returns the provider consent URL without redirecting.
func (h *AuthHandler) LoginURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.signInURL()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build sign-in url")
		writeError(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, LoginURLResponse{URL: url})
}

// Callback exchanges the provider code, upserts the user by email, and
// returns a signed token. Every exchange failure presents as 401 so
// callers cannot tell which step failed.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	identity, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn().Err(err).Msg("oauth code exchange failed")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	firstName, lastName := splitFullName(identity.FullName)
	email := identity.Email
	if email == "" {
		email = types.PlaceholderEmail
	}
	provider := identity.Provider
	if provider == "" {
		provider = "google"
	}

	user, err := h.userService.FindOrCreate(r.Context(), types.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Picture:   identity.AvatarURL,
		Role:      types.RoleUser,
		Provider:  provider,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("email", email).Msg("failed to resolve user")
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	signed, err := h.codec.Mint(user)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to mint token")
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: signed})
}

// Profile returns the full record of the authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", claims.Subject).Msg("failed to load user")
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// PromoteToAdmin elevates the authenticated user's role. The current
// token keeps its old role claim; the caller must sign in again for a
// token carrying the new role.
func (h *AuthHandler) PromoteToAdmin(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if _, err := h.userService.PromoteToAdmin(r.Context(), claims.Subject); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", claims.Subject).Msg("failed to promote user")
		writeError(w, http.StatusInternalServerError, "failed to promote user")
		return
	}

	writeJSON(w, http.StatusOK, PromoteResponse{
		Message:        "promoted to admin, sign in again for a token with the new role",
		RequiresReauth: true,
	})
}

// LoginURLResponse carries the provider consent URL.
type LoginURLResponse struct {
	URL string `json:"url"`
}

// TokenResponse carries a freshly minted token.
type TokenResponse struct {
	Token string `json:"token"`
}

// PromoteResponse confirms a role promotion.
type PromoteResponse struct {
	Message        string `json:"message"`
	RequiresReauth bool   `json:"requiresReauth"`
}

func (h *AuthHandler) signInURL() (string, error) {
	state, err := stateToken()
	if err != nil {
		return "", err
	}
	return h.exchanger.SignInURL(state)
}

func stateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// splitFullName splits a display name on whitespace: the first token is
// the first name, the remainder joined by spaces is the last name.
func splitFullName(full string) (firstName, lastName string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

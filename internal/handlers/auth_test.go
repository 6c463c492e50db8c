package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/fileharbor/apiserver/internal/oauth"
	"github.com/fileharbor/apiserver/internal/services"
	"github.com/fileharbor/apiserver/internal/store"
	"github.com/fileharbor/apiserver/internal/token"
	"github.com/fileharbor/apiserver/types"
)

// fakeUserRepo is an in-memory services.UserRepository keyed by email.
type fakeUserRepo struct {
	byEmail map[string]types.User
	nextID  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]types.User{}}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (types.User, error) {
	for _, user := range f.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := f.byEmail[user.Email]; ok {
		return types.User{}, store.ErrConflict
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.byEmail[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) UpdateRole(ctx context.Context, id, role string) (types.User, error) {
	for email, user := range f.byEmail {
		if user.ID == id {
			user.Role = role
			user.UpdatedAt = time.Now()
			f.byEmail[email] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

// fakeExchanger resolves a fixed identity for "good-code" and fails
// everything else.
type fakeExchanger struct {
	signInErr error
}

func (f *fakeExchanger) SignInURL(state string) (string, error) {
	if f.signInErr != nil {
		return "", f.signInErr
	}
	return "https://provider.example/consent?state=" + state, nil
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (oauth.Identity, error) {
	switch code {
	case "good-code":
		return oauth.Identity{
			Provider:  "google",
			Email:     "a@b.com",
			FullName:  "Ada Lovelace",
			AvatarURL: "https://example.com/ada.png",
		}, nil
	case "no-email-code":
		return oauth.Identity{Provider: "google", FullName: "Ada"}, nil
	default:
		return oauth.Identity{}, errors.New("invalid code")
	}
}

func newAuthServer(t *testing.T) (*chi.Mux, *fakeUserRepo, *token.Codec) {
	t.Helper()

	repo := newFakeUserRepo()
	codec := token.NewCodec("test-secret", time.Hour)
	handler := NewAuthHandler(services.NewUserService(repo), &fakeExchanger{}, codec, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api/v1/auth", func(r chi.Router) {
		AuthRouter(r, handler, RequireAuth(codec))
	})
	return router, repo, codec
}

func doRequest(router http.Handler, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginURL(t *testing.T) {
	router, _, _ := newAuthServer(t)

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/login-url", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp LoginURLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.URL, "https://provider.example/consent?state=") {
		t.Errorf("url = %q, want a consent url with state", resp.URL)
	}
	if strings.HasSuffix(resp.URL, "state=") {
		t.Error("state parameter is empty")
	}
}

func TestLoginRedirects(t *testing.T) {
	router, _, _ := newAuthServer(t)

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/login", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if location := rec.Header().Get("Location"); !strings.HasPrefix(location, "https://provider.example/consent") {
		t.Errorf("location = %q, want the consent url", location)
	}
}

func TestLoginProviderFailure(t *testing.T) {
	repo := newFakeUserRepo()
	codec := token.NewCodec("test-secret", time.Hour)
	exchanger := &fakeExchanger{signInErr: errors.New("provider rejected the request")}
	handler := NewAuthHandler(services.NewUserService(repo), exchanger, codec, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api/v1/auth", func(r chi.Router) {
		AuthRouter(r, handler, RequireAuth(codec))
	})

	for _, path := range []string{"/api/v1/auth/login", "/api/v1/auth/login-url"} {
		rec := doRequest(router, http.MethodGet, path, "")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("%s: status = %d, want 502", path, rec.Code)
		}
	}
}

func TestCallbackCreatesUserAndMintsToken(t *testing.T) {
	router, repo, codec := newAuthServer(t)

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/callback?code=good-code", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	claims, err := codec.Verify(resp.Token)
	if err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
	if claims.Email != "a@b.com" || claims.Role != types.RoleUser {
		t.Errorf("claims = %q/%q, want a@b.com/USER", claims.Email, claims.Role)
	}

	user, err := repo.GetByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.FirstName != "Ada" || user.LastName != "Lovelace" {
		t.Errorf("name = %q %q, want Ada Lovelace", user.FirstName, user.LastName)
	}
	if user.Role != types.RoleUser || user.Provider != "google" {
		t.Errorf("role/provider = %q/%q, want USER/google", user.Role, user.Provider)
	}
	if claims.Subject != user.ID {
		t.Errorf("token subject = %q, want user id %q", claims.Subject, user.ID)
	}
}

func TestCallbackIsIdempotentOnEmail(t *testing.T) {
	router, repo, codec := newAuthServer(t)

	first := doRequest(router, http.MethodGet, "/api/v1/auth/callback?code=good-code", "")
	second := doRequest(router, http.MethodGet, "/api/v1/auth/callback?code=good-code", "")
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d, want 200, 200", first.Code, second.Code)
	}
	if len(repo.byEmail) != 1 {
		t.Fatalf("stored users = %d, want 1", len(repo.byEmail))
	}

	var resp TokenResponse
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := codec.Verify(resp.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	user, _ := repo.GetByEmail(context.Background(), "a@b.com")
	if claims.Subject != user.ID {
		t.Errorf("second token subject = %q, want %q", claims.Subject, user.ID)
	}
}

func TestCallbackExchangeFailure(t *testing.T) {
	router, repo, _ := newAuthServer(t)

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/callback?code=bad-code", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(repo.byEmail) != 0 {
		t.Errorf("stored users = %d, want 0", len(repo.byEmail))
	}
}

func TestCallbackMissingCode(t *testing.T) {
	router, _, _ := newAuthServer(t)

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/callback", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCallbackSubstitutesPlaceholderEmail(t *testing.T) {
	router, repo, _ := newAuthServer(t)

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/callback?code=no-email-code", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if _, err := repo.GetByEmail(context.Background(), types.PlaceholderEmail); err != nil {
		t.Fatalf("placeholder-email user not created: %v", err)
	}
}

func TestProfile(t *testing.T) {
	router, repo, codec := newAuthServer(t)

	created, err := repo.Create(context.Background(), types.User{
		Email: "a@b.com", FirstName: "Ada", Role: types.RoleUser, Provider: "google",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	bearer, err := codec.Mint(created)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/profile", bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var user types.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.ID != created.ID || user.Email != "a@b.com" {
		t.Errorf("profile = %q/%q, want %q/a@b.com", user.ID, user.Email, created.ID)
	}
}

func TestProfileUserGone(t *testing.T) {
	router, _, codec := newAuthServer(t)

	bearer, err := codec.Mint(types.User{ID: "ghost", Email: "ghost@b.com", Role: types.RoleUser})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/profile", bearer)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestProfileUnauthorized(t *testing.T) {
	router, _, _ := newAuthServer(t)

	if rec := doRequest(router, http.MethodGet, "/api/v1/auth/profile", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(router, http.MethodGet, "/api/v1/auth/profile", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestPromoteToAdmin(t *testing.T) {
	router, repo, codec := newAuthServer(t)

	created, err := repo.Create(context.Background(), types.User{
		Email: "a@b.com", Role: types.RoleUser, Provider: "google",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	bearer, err := codec.Mint(created)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	rec := doRequest(router, http.MethodPost, "/api/v1/auth/promote-to-admin", bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp PromoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.RequiresReauth {
		t.Error("requiresReauth = false, want true")
	}

	user, _ := repo.GetByEmail(context.Background(), "a@b.com")
	if user.Role != types.RoleAdmin {
		t.Errorf("role = %q, want ADMIN", user.Role)
	}

	// The pre-promotion token still carries the old role claim.
	claims, err := codec.Verify(bearer)
	if err != nil {
		t.Fatalf("verify pre-promotion token: %v", err)
	}
	if claims.Role != types.RoleUser {
		t.Errorf("old token role = %q, want the snapshot value USER", claims.Role)
	}

	// Promoting again still succeeds.
	again := doRequest(router, http.MethodPost, "/api/v1/auth/promote-to-admin", bearer)
	if again.Code != http.StatusOK {
		t.Fatalf("second promote: status = %d, want 200", again.Code)
	}
}

func TestPromoteToAdminUserGone(t *testing.T) {
	router, _, codec := newAuthServer(t)

	bearer, err := codec.Mint(types.User{ID: "ghost", Email: "ghost@b.com", Role: types.RoleUser})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	rec := doRequest(router, http.MethodPost, "/api/v1/auth/promote-to-admin", bearer)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	router, repo, _ := newAuthServer(t)

	created, err := repo.Create(context.Background(), types.User{Email: "a@b.com", Role: types.RoleUser})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// Sign an already-expired token with the server's secret.
	now := time.Now()
	expired := token.Claims{
		Email: created.Email,
		Role:  created.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   created.ID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	bearer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/api/v1/auth/profile", bearer)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fileharbor/apiserver/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const providerGoogle = "google"

// GoogleExchanger implements Exchanger against Google's OAuth
// endpoints, resolving the signed-in user via the userinfo API.
type GoogleExchanger struct {
	conf *oauth2.Config
}

// NewGoogleExchanger constructs a Google exchanger from config.
func NewGoogleExchanger(cfg config.OAuthConfig) (*GoogleExchanger, error) {
	if strings.TrimSpace(cfg.GoogleClientID) == "" || strings.TrimSpace(cfg.GoogleClientSecret) == "" {
		return nil, errors.New("google client id and secret are required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("oauth redirect url is required")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
	return &GoogleExchanger{conf: conf}, nil
}

// SignInURL returns the consent-screen URL for the given state. The
// URL is built locally, so this never fails for Google.
func (g *GoogleExchanger) SignInURL(state string) (string, error) {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Exchange swaps the authorization code for a token and fetches the
// user's profile from the userinfo endpoint.
func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("code exchange failed: %w", err)
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(g.conf.TokenSource(ctx, tok)))
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo service init failed: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo fetch failed: %w", err)
	}
	if info == nil || (info.Email == "" && info.Id == "") {
		return Identity{}, errors.New("provider returned no user identity")
	}

	return Identity{
		Provider:  providerGoogle,
		Email:     info.Email,
		FullName:  strings.TrimSpace(info.Name),
		AvatarURL: info.Picture,
	}, nil
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/log"
)

const (
	// DefaultTokenURL is the CDSE identity provider token endpoint
	DefaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"

	clientID = "cdse-public"

	// sessionMaxAge is the staleness window after which the token is re-minted,
	// regardless of the expiry advertised by the identity provider
	sessionMaxAge = 600 * time.Second
)

// Session holds the bearer credential of an authenticated CDSE session.
// It is the only mutable state shared across operations; Token re-mints the
// credential when the session is stale and reuses it otherwise.
type Session struct {
	username string
	password string
	conf     *oauth2.Config

	token    *oauth2.Token
	mintedAt time.Time
	now      func() time.Time
}

// NewSession creates an unminted session; the first Token call mints it
func NewSession(tokenURL, username, password string) *Session {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &Session{
		username: username,
		password: password,
		conf: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		now: time.Now,
	}
}

// Token returns the bearer token, minting a new one if the session is older
// than the staleness window or was never minted
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.token == nil || s.now().Sub(s.mintedAt) >= sessionMaxAge {
		if err := s.Refresh(ctx); err != nil {
			return "", fmt.Errorf("Session.%w", err)
		}
	}
	return s.token.AccessToken, nil
}

// Refresh forces a token mint with the stored credentials. On failure the
// session is left unminted so that the next Token call retries.
func (s *Session) Refresh(ctx context.Context) error {
	s.token = nil
	token, err := s.conf.PasswordCredentialsToken(ctx, s.username, s.password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			log.Logger(ctx).Sugar().Errorf("access token creation failed. Response from the server was: %s", rerr.Body)
		}
		return service.MakeFatal(fmt.Errorf("Refresh: %w", err))
	}
	s.token = token
	s.mintedAt = s.now()
	return nil
}

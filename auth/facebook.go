package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"odinbook/domain"
	"odinbook/errs"
)

// DefaultGraphURL is the Facebook Graph API the profile is read from.
const DefaultGraphURL = "https://graph.facebook.com/v19.0"

// Facebook talks to Facebook on behalf of someone logging in. A client either
// sends an access token it already holds, or an authorization code to exchange.
type Facebook struct {
	config   *oauth2.Config
	graphURL string
}

// NewFacebook returns a Facebook client. An empty graphURL selects DefaultGraphURL.
func NewFacebook(clientID, clientSecret, redirectURL, graphURL string) *Facebook {
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	return &Facebook{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email", "public_profile"},
		},
		graphURL: graphURL,
	}
}

// AuthCodeURL is where the browser is sent to log in with Facebook.
func (fb *Facebook) AuthCodeURL(state string) string {
	return fb.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token.
func (fb *Facebook) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := fb.config.Exchange(ctx, code)
	if err != nil {
		return nil, errs.Errorf(errs.EUNAUTHENTICATED, "Facebook did not accept the authorization code.")
	}
	return token, nil
}

// Profile reads the person behind the token from the Graph API.
func (fb *Facebook) Profile(ctx context.Context, token *oauth2.Token) (*domain.ProviderProfile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fb.graphURL+"/me?fields=id,first_name,last_name,email", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting facebook profile: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return nil, errs.Errorf(errs.EUNAUTHENTICATED, "Facebook did not accept the access token.")
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("facebook profile: unexpected status %d", resp.StatusCode)
	}

	var profile domain.ProviderProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding facebook profile: %w", err)
	}
	if profile.ID == "" {
		return nil, errs.Errorf(errs.EUNAUTHENTICATED, "Facebook returned no profile.")
	}
	return &profile, nil
}

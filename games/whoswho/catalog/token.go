package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Seednode/whoswho/games/whoswho/kv"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// TokenKey is where StoredTokenSource keeps the current token.
	TokenKey = "whos-who-access-token"

	// tokens are treated as expired this long before the provider says so
	expirySlack = 20 * time.Second
)

// EndpointTokenSource fetches tokens from an endpoint answering GET requests
// with {"access_token": "...", "expires_in": seconds}.
type EndpointTokenSource struct {
	URL    string
	Client *http.Client
}

func (s *EndpointTokenSource) Token() (*oauth2.Token, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request token: unexpected status %s", resp.Status)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if body.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access_token")
	}

	tokenType := body.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	tok := &oauth2.Token{
		AccessToken: body.AccessToken,
		TokenType:   tokenType,
	}
	if body.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - expirySlack)
	}

	return tok, nil
}

// ClientCredentials uses the Spotify client credentials flow directly.
func ClientCredentials(ctx context.Context, clientID, clientSecret string) oauth2.TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	return cfg.TokenSource(ctx)
}

// StoredTokenSource keeps the last token in a kv.Store so it outlives restarts.
type StoredTokenSource struct {
	Store kv.Store
	Key   string
	Src   oauth2.TokenSource
}

type storedToken struct {
	Value      string `json:"value"`
	Type       string `json:"type"`
	Expiration int64  `json:"expiration"`
}

func (s *StoredTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := s.Key
	if key == "" {
		key = TokenKey
	}

	if raw, ok, err := s.Store.Get(ctx, key); err == nil && ok {
		var st storedToken
		if json.Unmarshal([]byte(raw), &st) == nil && st.Value != "" {
			tok := &oauth2.Token{
				AccessToken: st.Value,
				TokenType:   st.Type,
			}
			if st.Expiration > 0 {
				tok.Expiry = time.UnixMilli(st.Expiration)
			}
			if tok.Valid() {
				return tok, nil
			}
		}
	}

	tok, err := s.Src.Token()
	if err != nil {
		return nil, err
	}

	st := storedToken{Value: tok.AccessToken, Type: tok.TokenType}
	if !tok.Expiry.IsZero() {
		st.Expiration = tok.Expiry.UnixMilli()
	}
	if data, err := json.Marshal(st); err == nil {
		_ = s.Store.Set(ctx, key, string(data))
	}

	return tok, nil
}

// NewTokenSource caches tokens in memory and in store, fetching new ones
// from src on demand.
func NewTokenSource(store kv.Store, src oauth2.TokenSource) oauth2.TokenSource {
	if store == nil {
		return oauth2.ReuseTokenSource(nil, src)
	}
	return oauth2.ReuseTokenSource(nil, &StoredTokenSource{Store: store, Key: TokenKey, Src: src})
}

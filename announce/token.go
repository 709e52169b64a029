package announce

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/twitch"
)

// TokenPass supplies the IRC server password from an OAuth2 client
// credentials grant. The last token is cached in TokenFile when set, so
// restarts reuse it until it expires.
type TokenPass struct {
	TokenFile string

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewTokenPass builds a token source for the app credentials. An empty
// tokenURL uses the Twitch endpoint.
func NewTokenPass(ctx context.Context, clientID, clientSecret, tokenURL, tokenFile string) *TokenPass {
	if tokenURL == "" {
		tokenURL = twitch.Endpoint.TokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"chat:edit"},
	}
	p := &TokenPass{TokenFile: tokenFile}
	p.source = oauth2.ReuseTokenSource(p.load(), cc.TokenSource(ctx))
	return p
}

func (p *TokenPass) load() *oauth2.Token {
	if p.TokenFile == "" {
		return nil
	}
	blob, err := os.ReadFile(p.TokenFile)
	if err != nil {
		return nil
	}
	t := new(oauth2.Token)
	if err := json.Unmarshal(blob, t); err != nil || !t.Valid() {
		return nil
	}
	return t
}

func (p *TokenPass) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.source.Token()
	if err != nil {
		return nil, err
	}
	if p.TokenFile != "" {
		blob, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(p.TokenFile, blob, 0600); err != nil {
			return nil, err
		}
	}
	return t, nil
}

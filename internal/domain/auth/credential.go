package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// TokenRefresher renews an expired token.
type TokenRefresher interface {
	Refresh(portal, username string) (token string, expires time.Time, err error)
}

// Credential is the authentication handle carried by legacy requests.
// It is passed through compilers and executors unmodified. It holds a
// refresher and a lock, so a plain struct copy is not a valid clone:
// use Clone, which goes through Serialize/Deserialize.
type Credential struct {
	mu       sync.Mutex
	portal   string
	username string
	token    string
	expires  time.Time
	refresh  TokenRefresher
}

// NewCredential creates a credential for a portal session.
func NewCredential(portal, username, token string, expires time.Time) *Credential {
	return &Credential{portal: portal, username: username, token: token, expires: expires}
}

// WithRefresher attaches a refresher used when the token has expired.
func (c *Credential) WithRefresher(r TokenRefresher) *Credential {
	c.mu.Lock()
	c.refresh = r
	c.mu.Unlock()
	return c
}

// Portal returns the portal URL the credential belongs to.
func (c *Credential) Portal() string { return c.portal }

// Username returns the authenticated username.
func (c *Credential) Username() string { return c.username }

// Token returns a valid token, refreshing it when expired.
func (c *Credential) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expires.IsZero() || time.Now().Before(c.expires) {
		return c.token, nil
	}
	if c.refresh == nil {
		return "", errors.New("auth: token expired and no refresher configured")
	}
	tok, exp, err := c.refresh.Refresh(c.portal, c.username)
	if err != nil {
		return "", fmt.Errorf("auth: refresh token: %w", err)
	}
	c.token, c.expires = tok, exp
	return tok, nil
}

// Apply sets the bearer token on an outbound request.
func (c *Credential) Apply(req *http.Request) error {
	tok, err := c.Token()
	if err != nil {
		return err
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return nil
}

type serialized struct {
	Portal   string    `json:"portal"`
	Username string    `json:"username"`
	Token    string    `json:"token"`
	Expires  time.Time `json:"expires"`
}

// Serialize writes the session state. The refresher is not serialized.
func (c *Credential) Serialize() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(serialized{
		Portal: c.portal, Username: c.username, Token: c.token, Expires: c.expires,
	})
	if err != nil {
		return nil, fmt.Errorf("auth: serialize: %w", err)
	}
	return data, nil
}

// Deserialize rebuilds a credential from Serialize output.
func Deserialize(data []byte) (*Credential, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("auth: deserialize: %w", err)
	}
	return NewCredential(s.Portal, s.Username, s.Token, s.Expires), nil
}

// Clone rebuilds the credential through its serialize/deserialize pair and
// reattaches the refresher. A nil credential clones to nil.
func (c *Credential) Clone() (*Credential, error) {
	if c == nil {
		return nil, nil //nolint:nilnil // anonymous requests carry no credential
	}
	data, err := c.Serialize()
	if err != nil {
		return nil, err
	}
	out, err := Deserialize(data)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	out.refresh = c.refresh
	c.mu.Unlock()
	return out, nil
}

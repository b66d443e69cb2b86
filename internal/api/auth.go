package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"gareport/internal/apierr"
	"gareport/internal/logger"
)

const (
	AnalyticsReadOnlyScope = "https://www.googleapis.com/auth/analytics.readonly"
	AnalyticsEditScope     = "https://www.googleapis.com/auth/analytics.edit"
	SpreadsheetsScope      = "https://www.googleapis.com/auth/spreadsheets"
	BigQueryScope          = "https://www.googleapis.com/auth/bigquery"

	// Token refresh buffer - refresh tokens 5 minutes before expiry
	TokenRefreshBuffer = 5 * time.Minute

	// ReauthHint is attached to errors caused by an expired or revoked grant
	ReauthHint = "the saved login is no longer valid; run 'gareport auth login' to log in again"
)

// DefaultScopes covers every API the CLI talks to
var DefaultScopes = []string{
	AnalyticsReadOnlyScope,
	AnalyticsEditScope,
	SpreadsheetsScope,
	BigQueryScope,
}

// CredentialType identifies the kind of credentials JSON
type CredentialType string

const (
	ServiceAccount CredentialType = "service_account"
	AuthorizedUser CredentialType = "authorized_user"
	ClientSecret   CredentialType = "client_secret"
)

// LoginPrompt is where the interactive authorization flow prints the consent
// URL and reads the pasted code
type LoginPrompt struct {
	In  io.Reader
	Out io.Writer
}

// AuthOptions controls LoadCredentials
type AuthOptions struct {
	Scopes []string
	// CacheDir holds cached OAuth tokens for client secret files
	CacheDir string
	// Prompt enables the interactive flow; nil fails when no token is cached
	Prompt *LoginPrompt
}

// Credentials is an authenticated token source for Google APIs
type Credentials struct {
	Type        CredentialType
	ClientEmail string
	CachePath   string

	tokenSource oauth2.TokenSource
}

type credentialsFile struct {
	Type         string          `json:"type"`
	ClientEmail  string          `json:"client_email"`
	ClientID     string          `json:"client_id"`
	ClientSecret string          `json:"client_secret"`
	RefreshToken string          `json:"refresh_token"`
	Installed    json.RawMessage `json:"installed"`
	Web          json.RawMessage `json:"web"`
}

// CacheFilename returns the token cache file name for a client secret file:
// ".<basename without extension>_cached-cred.json"
func CacheFilename(secretFile string) string {
	base := filepath.Base(secretFile)
	return "." + strings.TrimSuffix(base, filepath.Ext(base)) + "_cached-cred.json"
}

// LoadCredentials builds credentials from a service account key, an
// authorized user file or an OAuth client secret. Client secret logins are
// cached on disk next to CacheDir
func LoadCredentials(ctx context.Context, file string, opts AuthOptions) (*Credentials, error) {
	if file == "" {
		return nil, apierr.Configuration("no credentials file configured; run 'gareport config set credentials_file <path>'", nil)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, apierr.Configuration("cannot read credentials file "+file, err)
	}

	var cf credentialsFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, apierr.Configuration("credentials file is not valid JSON", err)
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	switch {
	case cf.Type == string(ServiceAccount):
		jwtConfig, err := google.JWTConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, apierr.Configuration("invalid service account key", err)
		}
		return &Credentials{
			Type:        ServiceAccount,
			ClientEmail: jwtConfig.Email,
			tokenSource: oauth2.ReuseTokenSourceWithExpiry(nil, jwtConfig.TokenSource(ctx), TokenRefreshBuffer),
		}, nil

	case cf.Type == string(AuthorizedUser):
		if cf.RefreshToken == "" {
			return nil, apierr.Configuration("authorized user file has no refresh_token", nil)
		}
		oauthConfig := &oauth2.Config{
			ClientID:     cf.ClientID,
			ClientSecret: cf.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		}
		token := &oauth2.Token{RefreshToken: cf.RefreshToken}
		return &Credentials{
			Type:        AuthorizedUser,
			tokenSource: oauth2.ReuseTokenSourceWithExpiry(nil, oauthConfig.TokenSource(ctx, token), TokenRefreshBuffer),
		}, nil

	case len(cf.Installed) > 0 || len(cf.Web) > 0:
		return loadClientSecret(ctx, file, data, scopes, opts)

	default:
		return nil, apierr.Configuration("unrecognised credentials file: expected a service account key or an OAuth client secret", nil)
	}
}

func loadClientSecret(ctx context.Context, file string, data []byte, scopes []string, opts AuthOptions) (*Credentials, error) {
	oauthConfig, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, apierr.Configuration("invalid OAuth client secret", err)
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Dir(file)
	}
	cachePath := filepath.Join(cacheDir, CacheFilename(file))

	token, err := readToken(cachePath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cachePath).Msg("Ignoring unreadable token cache")
	}
	if token == nil {
		if opts.Prompt == nil {
			return nil, apierr.Configuration("not logged in; run 'gareport auth login'", nil)
		}
		token, err = consoleLogin(ctx, oauthConfig, opts.Prompt)
		if err != nil {
			return nil, err
		}
		if err := writeToken(cachePath, token); err != nil {
			return nil, err
		}
	}

	return &Credentials{
		Type:      ClientSecret,
		CachePath: cachePath,
		tokenSource: &cachingTokenSource{
			base: oauth2.ReuseTokenSourceWithExpiry(token, oauthConfig.TokenSource(ctx, token), TokenRefreshBuffer),
			path: cachePath,
			last: token.AccessToken,
		},
	}, nil
}

// consoleLogin runs the authorization code flow through the prompt
func consoleLogin(ctx context.Context, oauthConfig *oauth2.Config, prompt *LoginPrompt) (*oauth2.Token, error) {
	if oauthConfig.RedirectURL == "" || strings.HasPrefix(oauthConfig.RedirectURL, "urn:ietf:wg:oauth:2.0:oob") {
		oauthConfig.RedirectURL = "http://localhost"
	}
	state := uuid.NewString()
	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintf(prompt.Out, "Open this URL in your browser and grant access:\n\n  %s\n\n", authURL)
	fmt.Fprint(prompt.Out, "Paste the authorization code or the full redirect URL: ")

	line, err := bufio.NewReader(prompt.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}
	code, err := extractCode(strings.TrimSpace(line), state)
	if err != nil {
		return nil, err
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, apierr.Configuration("authorization code exchange failed", err)
	}
	return token, nil
}

func extractCode(input, state string) (string, error) {
	if input == "" {
		return "", apierr.Configuration("no authorization code entered", nil)
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", apierr.Configuration("cannot parse redirect URL", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", apierr.Configuration("redirect URL belongs to a different login attempt", nil)
	}
	if q.Get("code") == "" {
		return "", apierr.Configuration("redirect URL has no code parameter", nil)
	}
	return q.Get("code"), nil
}

// TokenSource returns the underlying token source
func (c *Credentials) TokenSource() oauth2.TokenSource {
	return c.tokenSource
}

// HTTPClient returns an HTTP client that authorizes every request
func (c *Credentials) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.tokenSource)
}

// ResetCache deletes the cached login for a client secret file
func ResetCache(secretFile, cacheDir string) error {
	if cacheDir == "" {
		cacheDir = filepath.Dir(secretFile)
	}
	path := filepath.Join(cacheDir, CacheFilename(secretFile))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	return nil
}

// IsInvalidGrant reports whether err is an expired or revoked refresh token
func IsInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	return re.ErrorCode == "invalid_grant" || strings.Contains(string(re.Body), "invalid_grant")
}

// cachingTokenSource writes refreshed tokens back to the cache file and
// removes it once the grant has expired
type cachingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		if IsInvalidGrant(err) {
			s.invalidate()
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		if err := writeToken(s.path, token); err != nil {
			logger.Warn().Err(err).Msg("Failed to update token cache")
		}
		s.last = token.AccessToken
	}
	return token, nil
}

// invalidate drops the cached login so the next run asks for a new one
func (s *cachingTokenSource) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", s.path).Msg("Failed to remove expired token cache")
		return
	}
	logger.Info().Str("path", s.path).Msg("Removed expired token cache")
	s.last = ""
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token cache: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, nil
	}
	return &token, nil
}

func writeToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

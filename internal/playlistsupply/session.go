package playlistsupply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "playlistsupply")

var (
	// ErrAuth means the login was rejected or could not be completed.
	ErrAuth = errors.New("playlistsupply login failed")
	// ErrSessionInvalid means the session expired or was never established.
	// The session must not be reused after this.
	ErrSessionInvalid = errors.New("playlistsupply session invalid")
	// ErrRecoverable covers per-keyword failures that should not stop a run.
	ErrRecoverable = errors.New("playlistsupply search failed")
)

const (
	DefaultBaseURL = "https://playlistsupply.com"

	loginPath  = "/amember/login"
	searchPath = "/tool/libs/timemachine_reloaded.php"
	searchPage = "/tool/search.php"
)

type Config struct {
	BaseURL       string
	UserEmail     string
	LoginTimeout  time.Duration
	SearchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 20 * time.Second
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 45 * time.Second
	}
	return c
}

// SessionState is a snapshot of the session's authentication status.
type SessionState struct {
	Authenticated bool       `json:"authenticated"`
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`
}

// Session is one authenticated connection to the search tool. It owns its
// own cookie jar and is meant to live for a single discovery run.
type Session struct {
	cfg    Config
	client *resty.Client

	mu            sync.Mutex
	authenticated bool
	invalidatedAt time.Time
}

var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"DNT":             "1",
}

func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	jar, _ := cookiejar.New(nil)

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetCookieJar(jar).
		SetHeaders(browserHeaders).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &Session{cfg: cfg, client: client}
}

// State returns a snapshot of the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SessionState{Authenticated: s.authenticated}
	if !s.invalidatedAt.IsZero() {
		t := s.invalidatedAt
		st.InvalidatedAt = &t
	}
	return st
}

func (s *Session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated {
		s.authenticated = false
		s.invalidatedAt = time.Now()
	}
}

// Login posts the member login form. Any failure wraps ErrAuth.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrAuth)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Referer": s.cfg.BaseURL + loginPath,
			"Origin":  s.cfg.BaseURL,
		}).
		SetFormData(map[string]string{
			"amember_login":    username,
			"amember_pass":     password,
			"login_attempt_id": strconv.FormatInt(time.Now().Unix(), 10),
		}).
		Post(loginPath)
	if err != nil {
		return fmt.Errorf("%w: login request: %w", ErrAuth, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: login returned HTTP %d", ErrAuth, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return fmt.Errorf("%w: read login response: %w", ErrAuth, err)
	}

	if onLoginPage(resp.RawResponse) || hasLoginForm(doc) {
		var msgs []string
		doc.Find(".am-errors li, div.error, .alert-danger").Each(func(_ int, sel *goquery.Selection) {
			if t := strings.TrimSpace(sel.Text()); t != "" {
				msgs = append(msgs, t)
			}
		})
		if len(msgs) > 0 {
			return fmt.Errorf("%w: %s", ErrAuth, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: still on login page", ErrAuth)
	}

	s.mu.Lock()
	s.authenticated = true
	s.invalidatedAt = time.Time{}
	s.mu.Unlock()

	log.Info("logged in")
	return nil
}

func onLoginPage(raw *http.Response) bool {
	if raw == nil || raw.Request == nil || raw.Request.URL == nil {
		return false
	}
	return strings.HasPrefix(raw.Request.URL.Path, loginPath)
}

// Search runs one keyword query. Errors wrap ErrSessionInvalid or ErrRecoverable.
// A blank keyword yields no results and no request.
func (s *Session) Search(ctx context.Context, keyword string) ([]Playlist, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	if !s.State().Authenticated {
		return nil, fmt.Errorf("%w: not logged in", ErrSessionInvalid)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Referer":          s.cfg.BaseURL + searchPage,
			"X-Requested-With": "XMLHttpRequest",
			"Accept":           "*/*",
		}).
		SetQueryParams(map[string]string{
			"user_email": s.cfg.UserEmail,
			"code":       "email",
			"keyword":    keyword,
		}).
		Get(searchPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrRecoverable, keyword, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		s.invalidate()
		return nil, fmt.Errorf("%w: authorization error (%d)", ErrSessionInvalid, code)
	case code >= 300:
		return nil, fmt.Errorf("%w: %q: HTTP %d", ErrRecoverable, keyword, code)
	}

	switch p := Parse(resp.Body()).(type) {
	case ParsedJSON:
		logDropped(keyword, p.Dropped)
		return p.Playlists, nil
	case WrappedJSON:
		log.WithFields(logrus.Fields{"keyword": keyword, "offset": p.Offset}).Debug("json found after prefix")
		logDropped(keyword, p.Dropped)
		return p.Playlists, nil
	case NoResults:
		return nil, nil
	case LoginPageDetected:
		s.invalidate()
		return nil, fmt.Errorf("%w: session expired", ErrSessionInvalid)
	case UnexpectedContent:
		log.WithFields(logrus.Fields{"keyword": keyword, "snippet": p.Snippet}).Warn("unexpected search response")
		return nil, fmt.Errorf("%w: %q: unexpected response content", ErrRecoverable, keyword)
	default:
		return nil, fmt.Errorf("%w: %q: unhandled response type %T", ErrRecoverable, keyword, p)
	}
}

func logDropped(keyword string, n int) {
	if n > 0 {
		log.WithFields(logrus.Fields{"keyword": keyword, "dropped": n}).Debug("dropped records without a playlist url")
	}
}

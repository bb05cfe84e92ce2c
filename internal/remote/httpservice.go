package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mbelkin/cardsync/internal/common"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
)

// HTTPService talks to the backend's resource-oriented JSON API. It refreshes
// the session token once on an auth rejection and otherwise maps statuses to
// the shared error taxonomy.
type HTTPService struct {
	baseURL string
	client  *http.Client
	session *Session
	logger  logging.Logger
}

// Compile-time check: *HTTPService must satisfy Service.
var _ Service = (*HTTPService)(nil)

func NewHTTPService(baseURL string, session *Session, logger logging.Logger) *HTTPService {
	return &HTTPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		session: session,
		logger:  logger,
	}
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login authenticates and stores the returned token pair in the session.
func (s *HTTPService) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var tokens tokenPair
	if err := s.do(ctx, http.MethodPost, "/v1/auth/login", body, &tokens); err != nil {
		return err
	}
	s.session.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	return nil
}

func (s *HTTPService) refresh(ctx context.Context) error {
	_, refreshToken := s.session.Tokens()
	if refreshToken == "" {
		return fmt.Errorf("no refresh token: %w", common.ErrAuth)
	}

	var tokens tokenPair
	err := s.doOnce(ctx, http.MethodPost, "/v1/auth/refresh",
		map[string]string{"refresh_token": refreshToken}, &tokens, "")
	if err != nil {
		return err
	}
	s.session.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	return nil
}

func (s *HTTPService) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/v1/ping", nil, nil)
}

func (s *HTTPService) Create(ctx context.Context, e models.RemoteEntity) (models.RemoteEntity, error) {
	var out models.RemoteEntity
	err := s.do(ctx, http.MethodPost, "/v1/entities", e, &out)
	return out, err
}

func (s *HTTPService) Get(ctx context.Context, remoteID string) (models.RemoteEntity, error) {
	var out models.RemoteEntity
	err := s.do(ctx, http.MethodGet, "/v1/entities/"+url.PathEscape(remoteID), nil, &out)
	return out, err
}

func (s *HTTPService) Update(ctx context.Context, e models.RemoteEntity) (models.RemoteEntity, error) {
	var out models.RemoteEntity
	err := s.do(ctx, http.MethodPut, "/v1/entities/"+url.PathEscape(e.RemoteID), e, &out)
	return out, err
}

func (s *HTTPService) Delete(ctx context.Context, remoteID string) error {
	return s.do(ctx, http.MethodDelete, "/v1/entities/"+url.PathEscape(remoteID), nil, nil)
}

func (s *HTTPService) ListByOwner(ctx context.Context, ownerID string, q ListQuery) (List, error) {
	vals := url.Values{}
	vals.Set("entity_type", string(q.Kind))
	if q.Page > 0 {
		vals.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		vals.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if !q.UpdatedSince.IsZero() {
		vals.Set("updated_since", q.UpdatedSince.UTC().Format(time.RFC3339))
	}

	path := "/v1/owners/" + url.PathEscape(ownerID) + "/entities?" + vals.Encode()

	var out struct {
		Items   []models.RemoteEntity `json:"items"`
		Total   int                   `json:"total"`
		HasMore bool                  `json:"has_more"`
	}
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return List{}, err
	}
	return List{Items: out.Items, Total: out.Total, HasMore: out.HasMore}, nil
}

func (s *HTTPService) Summarize(ctx context.Context, ownerID string, kind models.Kind) (models.Summary, error) {
	path := "/v1/owners/" + url.PathEscape(ownerID) + "/summary?entity_type=" + url.QueryEscape(string(kind))
	var out models.Summary
	err := s.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// do issues one request with the current access token. On an auth rejection
// it refreshes the token pair once and retries, mirroring the usual
// interceptor flow. All other failures surface mapped but untouched.
func (s *HTTPService) do(ctx context.Context, method, path string, in, out any) error {
	access, _ := s.session.Tokens()

	// Refresh proactively when the token is visibly past its exp claim.
	if access != "" && s.session.Expired(time.Now()) {
		if err := s.refresh(ctx); err == nil {
			access, _ = s.session.Tokens()
		}
	}

	err := s.doOnce(ctx, method, path, in, out, access)
	if !errors.Is(err, common.ErrAuth) {
		return err
	}

	if refreshErr := s.refresh(ctx); refreshErr != nil {
		return err
	}
	access, _ = s.session.Tokens()
	return s.doOnce(ctx, method, path, in, out, access)
}

func (s *HTTPService) doOnce(ctx context.Context, method, path string, in, out any, accessToken string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return common.ErrAuth
	case code == http.StatusNotFound:
		return common.ErrNotFound
	case code == http.StatusConflict:
		return common.ErrConflict
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return common.ErrValidation
	default:
		// 5xx and anything unexpected: transient from the client's view.
		return common.ErrNetwork
	}
}

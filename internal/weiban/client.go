// Package weiban は微伴助手（企業微信サイドバー）のOpen APIクライアントを提供する。
// access_tokenのキャッシュと、サイドバーのcodeから外部ユーザーIDへの解決を含む。
package weiban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/metrics"
)

const (
	accessTokenPath = "/open-api/access_token/get"
	authInfoPath    = "/open-api/open_auth/sidebar/get_auth_info"

	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
	// bodySnippetSize はエラーメッセージに含めるボディの長さ。
	bodySnippetSize = 100
)

// Recorder は上流呼び出しのメトリクスを記録する。
type Recorder interface {
	RecordTokenRefresh(success bool)
	RecordUpstreamLatency(endpoint string, duration time.Duration)
}

// ClientConfig は微伴APIの接続情報を表す。
type ClientConfig struct {
	BaseURL string
	CorpID  string
	Secret  string
}

// AccessToken はaccess_token取得APIの結果を表す。
type AccessToken struct {
	Token     string
	ExpiresIn time.Duration
}

// AuthInfo はサイドバー認証情報APIの結果を表す。
type AuthInfo struct {
	StaffID        string
	ExternalUserID string
	GroupChatID    string
}

// Client は微伴Open APIのクライアント。
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	logger     *slog.Logger
	recorder   Recorder
}

// NewClient はClientを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewClient(httpClient *http.Client, cfg ClientConfig, logger *slog.Logger, recorder Recorder) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger,
		recorder:   recorder,
	}
}

type accessTokenResponse struct {
	Errcode     int    `json:"errcode"`
	Errmsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type authInfoResponse struct {
	Errcode        int    `json:"errcode"`
	Errmsg         string `json:"errmsg"`
	StaffID        string `json:"staff_id"`
	ExternalUserID string `json:"external_user_id"`
	GroupChatID    string `json:"group_chat_id"`
}

// FetchAccessToken はcorp_idとsecretでaccess_tokenを取得する。
func (c *Client) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	payload, err := json.Marshal(map[string]string{
		"corp_id": c.cfg.CorpID,
		"secret":  c.cfg.Secret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode access token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+accessTokenPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create access token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("requesting weiban access token", slog.String("corp_id", c.cfg.CorpID))

	body, err := c.do(req, OpAccessToken)
	if err != nil {
		return nil, err
	}

	var resp accessTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{
			Op:         OpAccessToken,
			HTTPStatus: http.StatusOK,
			Message:    "non-JSON response: " + snippet(body),
		}
	}
	if resp.Errcode != 0 {
		return nil, &UpstreamError{
			Op:         OpAccessToken,
			HTTPStatus: http.StatusOK,
			Errcode:    resp.Errcode,
			Message:    resp.Errmsg,
		}
	}
	if resp.AccessToken == "" || resp.ExpiresIn <= 0 {
		return nil, &UpstreamError{
			Op:         OpAccessToken,
			HTTPStatus: http.StatusOK,
			Message:    "response is missing access_token or expires_in",
		}
	}

	return &AccessToken{
		Token:     resp.AccessToken,
		ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// GetAuthInfo はサイドバーから渡された一回限りのcodeを外部ユーザー情報に交換する。
// external_user_idが空でもエラーにはしない。
func (c *Client) GetAuthInfo(ctx context.Context, accessToken, code string) (*AuthInfo, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+authInfoPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth info request: %w", err)
	}

	body, err := c.do(req, OpAuthInfo)
	if err != nil {
		return nil, err
	}

	var resp authInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{
			Op:         OpAuthInfo,
			HTTPStatus: http.StatusOK,
			Message:    "non-JSON response: " + snippet(body),
		}
	}
	if resp.Errcode != 0 {
		return nil, &UpstreamError{
			Op:         OpAuthInfo,
			HTTPStatus: http.StatusOK,
			Errcode:    resp.Errcode,
			Message:    resp.Errmsg,
		}
	}

	return &AuthInfo{
		StaffID:        resp.StaffID,
		ExternalUserID: resp.ExternalUserID,
		GroupChatID:    resp.GroupChatID,
	}, nil
}

// do はリクエストを実行し、HTTP 200のボディを返す。
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.recorder.RecordUpstreamLatency(op, time.Since(start))
	if err != nil {
		c.logger.Error("weiban request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UpstreamError{Op: op, HTTPStatus: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("weiban returned error status",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &UpstreamError{Op: op, HTTPStatus: resp.StatusCode, Message: snippet(body)}
	}

	return body, nil
}

// snippet はボディの先頭をエラーメッセージ用に切り出す。
func snippet(body []byte) string {
	if len(body) > bodySnippetSize {
		body = body[:bodySnippetSize]
	}
	return strings.ToValidUTF8(string(body), "")
}

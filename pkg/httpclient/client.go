package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout はタイムアウト未指定時に使用する値。
const DefaultTimeout = 10 * time.Second

// MaxResponseBytes は読み込むレスポンスボディの上限。
const MaxResponseBytes = 10 << 20

var (
	// ErrUnavailable は上流サービスから完全なレスポンスを得られなかったことを表す。
	// 接続拒否・タイムアウト・読み取り失敗・上限超過を含む。
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrResponseTooLarge はレスポンスボディがMaxResponseBytesを超えたことを表す。
	// 常にErrUnavailableと併せてラップされる。
	ErrResponseTooLarge = errors.New("upstream response too large")
)

// Client はサービス間通信用のHTTPクライアント。
// 1リクエストにつき1回だけ送信し、リトライは行わない。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// Response は上流サービスのレスポンス。ボディは読み込み済み。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ。
	Body []byte
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://member:8002"）を指定する。
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// リダイレクトは追跡せずそのまま呼び出し元に返す
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Do は指定メソッド・パスでリクエストを送信し、レスポンスを読み込んで返す。
// 非2xxのステータスはエラーにしない。送信や読み取りに失敗した場合は
// ErrUnavailableをラップしたエラーを返す。
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, body io.Reader) (*Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTPリクエストの送信に失敗: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// 途中で切り詰めたボディを返さないよう、上限を1バイト超えて読む
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: レスポンスの読み取りに失敗: %v", ErrUnavailable, err)
	}
	if len(respBody) > MaxResponseBytes {
		return nil, fmt.Errorf("%w: %w: 上限は%dバイト", ErrUnavailable, ErrResponseTooLarge, MaxResponseBytes)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// IsSuccess はステータスコードが2xxかを返す。
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

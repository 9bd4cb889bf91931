package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/orghub/pkg/apperror"
	"github.com/nao1215/orghub/pkg/config"
	"github.com/nao1215/orghub/pkg/httpclient"
	"github.com/nao1215/orghub/pkg/httpserver"
	"github.com/nao1215/orghub/pkg/middleware"
	"github.com/nao1215/orghub/pkg/token"
)

const (
	// serviceMember はメンバーサービスの識別名。ConnectionFailureのdetails.serviceに使う。
	serviceMember = "member"
	// serviceFeedback はフィードバックサービスの識別名。
	serviceFeedback = "feedback"

	// tokenRejectedMessage はトークン発行を拒否した場合の共通メッセージ。
	// ログイン名の存在有無やバックエンド内部の失敗理由を区別させない。
	tokenRejectedMessage = "ログイン名またはパスワードが正しくありません"
)

// upstream は転送先の内部サービス。
type upstream struct {
	// name はサービスの識別名。
	name string
	// client はサービスへのHTTPクライアント。
	client *httpclient.Client
}

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// authority はトークンの検証を行う。
	authority *token.Authority
	// member はメンバーサービス。
	member upstream
	// feedback はフィードバックサービス。
	feedback upstream
	// allowedOrigins はCORSで許可するオリジン。
	allowedOrigins []string
	// now は現在時刻を返す。
	now func() time.Time
}

// NewServer は設定から新しいGatewayサーバーを生成する。
// Gatewayは永続化層を持たず、トークン検証と内部サービスへの転送のみを行う。
func NewServer(cfg config.Gateway) (*Server, error) {
	authority, err := cfg.Authority()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:         gin.New(),
		port:           cfg.Port,
		authority:      authority,
		member:         upstream{name: serviceMember, client: httpclient.New(cfg.MemberServiceURL, cfg.UpstreamTimeout)},
		feedback:       upstream{name: serviceFeedback, client: httpclient.New(cfg.FeedbackServiceURL, cfg.UpstreamTimeout)},
		allowedOrigins: cfg.AllowedOrigins,
		now:            time.Now,
	}
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger("gateway"))
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS(s.allowedOrigins))
	s.setupRoutes()

	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Serve(ctx, "gateway", s.port, s.router)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// トークン発行（認証不要）。資格情報の検証はメンバーサービスが行う
	s.router.POST("/token", s.handleToken())

	// 認証必須のAPIエンドポイント。検証に失敗したリクエストは内部サービスに到達しない
	api := s.router.Group("/")
	api.Use(middleware.BearerAuth(s.authority, func() time.Time { return s.now() }))
	{
		members := api.Group("/members")
		{
			members.POST("/", s.handleProxy(s.member))
			members.GET("/", s.handleProxy(s.member))
			members.DELETE("/", s.handleProxy(s.member))
			members.GET("/:id", s.handleProxy(s.member))
			members.DELETE("/:id", s.handleProxy(s.member))
		}

		feedbacks := api.Group("/feedback")
		{
			feedbacks.POST("/", s.handleProxy(s.feedback))
			feedbacks.GET("/", s.handleProxy(s.feedback))
			feedbacks.DELETE("/", s.handleProxy(s.feedback))
			feedbacks.GET("/:id", s.handleProxy(s.feedback))
			feedbacks.DELETE("/:id", s.handleProxy(s.feedback))
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	s.router.NoRoute(func(c *gin.Context) {
		apperror.Respond(c, apperror.NotFound("指定されたパスは存在しません"))
	})
}

// handleProxy はリクエストを同じパスのまま内部サービスに転送するハンドラを返す。
func (s *Server) handleProxy(up upstream) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, ok := forward(c, up)
		if !ok {
			return
		}
		relay(c, up, resp)
	}
}

// handleToken はトークン発行をメンバーサービスに委譲するハンドラを返す。
// 入力不備（Validation）以外のエンベロープはすべてAuthenticationFailureに置き換える。
func (s *Server) handleToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, ok := forward(c, s.member)
		if !ok {
			return
		}
		if rejected, ok := apperror.Decode(resp.StatusCode, resp.Body); ok && !apperror.HasCode(rejected, apperror.CodeValidation) {
			if rejected.Code != apperror.CodeAuthentication {
				log.Printf("[Gateway] トークン発行でメンバーサービスがエラーを返しました: request_id=%s, code=%d", middleware.GetRequestID(c), rejected.Code)
			}
			apperror.Respond(c, apperror.Authentication(tokenRejectedMessage))
			return
		}
		relay(c, s.member, resp)
	}
}

// forward はリクエストを内部サービスに転送する。
// 転送できなかった場合はエラーを応答済みにしてfalseを返す。
func forward(c *gin.Context, up upstream) (*httpclient.Response, bool) {
	path := c.Request.URL.EscapedPath()
	if c.Request.URL.RawQuery != "" {
		path += "?" + c.Request.URL.RawQuery
	}

	var body io.Reader
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		body = c.Request.Body
	}

	resp, err := up.client.Do(c.Request.Context(), c.Request.Method, path, forwardHeader(c), body)
	if err != nil {
		if errors.Is(err, httpclient.ErrUnavailable) {
			log.Printf("[Gateway] 内部サービスから応答を得られません: request_id=%s, service=%s, error=%v", middleware.GetRequestID(c), up.name, err)
			apperror.Respond(c, apperror.Connection(up.name+"サービスに接続できません", up.name))
			return nil, false
		}
		apperror.Respond(c, apperror.Internal("転送リクエストの作成に失敗しました").WithCause(err))
		return nil, false
	}
	return resp, true
}

// forwardHeader は内部サービスに転送するヘッダーを組み立てる。
// 検証済みトークンはAuthorizationヘッダーとして付け直し、内部サービスが再検証できるようにする。
func forwardHeader(c *gin.Context) http.Header {
	header := http.Header{}
	if ct := c.GetHeader("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}
	if accept := c.GetHeader("Accept"); accept != "" {
		header.Set("Accept", accept)
	}
	if tok := middleware.GetToken(c); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	if id := middleware.GetRequestID(c); id != "" {
		header.Set(middleware.HeaderRequestID, id)
	}
	return header
}

// relay は内部サービスのレスポンスをクライアントに返す。
// 2xxとタクソノミーのエンベロープはそのまま返し、それ以外はConnectionFailureに置き換える。
func relay(c *gin.Context, up upstream, resp *httpclient.Response) {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	if resp.IsSuccess() {
		c.Data(resp.StatusCode, contentType, resp.Body)
		return
	}
	if _, ok := apperror.Decode(resp.StatusCode, resp.Body); ok {
		c.Data(resp.StatusCode, contentType, resp.Body)
		return
	}

	log.Printf("[Gateway] 内部サービスが想定外の応答を返しました: request_id=%s, service=%s, status=%d", middleware.GetRequestID(c), up.name, resp.StatusCode)
	apperror.Respond(c, apperror.Connection(up.name+"サービスから不正な応答がありました", up.name).WithDetail("status", resp.StatusCode))
}

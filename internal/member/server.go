package member

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/orghub/pkg/apperror"
	"github.com/nao1215/orghub/pkg/config"
	"github.com/nao1215/orghub/pkg/httpserver"
	"github.com/nao1215/orghub/pkg/middleware"
	"github.com/nao1215/orghub/pkg/request"
	"github.com/nao1215/orghub/pkg/storage"
	"github.com/nao1215/orghub/pkg/token"
)

// invalidLoginMessage はログイン失敗時の共通メッセージ。
// 未登録・削除済み・パスワード不一致を区別しない。
const invalidLoginMessage = "ログイン名またはパスワードが正しくありません"

// Server はメンバーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はメンバーの永続化層。
	store Store
	// closer はストアの後始末。注入されたストアの場合はnil。
	closer func() error
	// authority はトークンの発行・検証を行う。
	authority *token.Authority
	// maintenanceKey は内部メンテナンスAPIの認証キー。空なら認証しない。
	maintenanceKey string
	// passwordCost はbcryptのコスト。
	passwordCost int
	// now は現在時刻を返す。
	now func() time.Time
}

// NewServer は設定からメンバーサーバーを生成する。
// SQLiteデータベースを開いてマイグレーションを適用し、必要なら初期メンバーを作成する。
func NewServer(ctx context.Context, cfg config.Member) (*Server, error) {
	authority, err := cfg.Authority()
	if err != nil {
		return nil, fmt.Errorf("トークン設定が不正: %w", err)
	}

	store, err := OpenSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("データベースの初期化に失敗: %w", err)
	}

	s := newServer(store, authority, cfg.Port, cfg.MaintenanceKey)
	s.closer = store.Close
	s.passwordCost = cfg.PasswordCost

	if cfg.BootstrapLogin != "" {
		if err := s.bootstrap(ctx, cfg.BootstrapLogin, cfg.BootstrapPassword, cfg.BootstrapEmail); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("初期メンバーの作成に失敗: %w", err)
		}
	}
	return s, nil
}

// newServer はストアを注入してサーバーを組み立てる。
func newServer(store Store, authority *token.Authority, port, maintenanceKey string) *Server {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger("member"))
	router.Use(middleware.Recovery())

	s := &Server{
		router:         router,
		port:           port,
		store:          store,
		authority:      authority,
		maintenanceKey: maintenanceKey,
		passwordCost:   bcrypt.DefaultCost,
		now:            time.Now,
	}
	s.setupRoutes()
	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Serve(ctx, "member", s.port, s.router)
}

// Close はストアを閉じる。
func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// トークン発行（認証不要）
	s.router.POST("/token", s.handleToken())

	members := s.router.Group("/members")
	members.Use(middleware.BearerAuth(s.authority, func() time.Time { return s.now() }))
	{
		members.POST("/", s.handleCreate())
		members.GET("/", s.handleList())
		members.DELETE("/", s.handleDeleteAll())
		members.GET("/:id", s.handleGet())
		members.DELETE("/:id", s.handleDelete())
	}

	// 内部メンテナンスAPI（Gatewayからは公開しない）
	internal := s.router.Group("/internal/members")
	internal.Use(middleware.MaintenanceKey(s.maintenanceKey))
	{
		internal.DELETE("/:id/hard", s.handleHardDelete())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "member"})
	})

	s.router.NoRoute(func(c *gin.Context) {
		apperror.Respond(c, apperror.NotFound("指定されたパスは存在しません"))
	})
}

// bootstrap はログイン名が未使用の場合に初期メンバーを作成する。
func (s *Server) bootstrap(ctx context.Context, login, password, email string) error {
	taken, err := s.store.LoginTaken(ctx, login)
	if err != nil {
		return err
	}
	if taken {
		log.Printf("[Member] 初期メンバーは作成済みです: login=%s", login)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	err = s.store.Create(ctx, Member{
		ID:           uuid.NewString(),
		FirstName:    login,
		LastName:     login,
		Login:        login,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return err
	}
	log.Printf("[Member] 初期メンバーを作成しました: login=%s", login)
	return nil
}

// tokenRequest はトークン発行リクエスト。フォームとJSONの両方を受け付ける。
type tokenRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// tokenResponse はトークン発行レスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// createMemberRequest はメンバー作成リクエストのJSON構造。
type createMemberRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Login     string `json:"login" binding:"required,alphanum,min=3,max=30"`
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url,max=2048"`
	Followers int    `json:"followers" binding:"min=0"`
	Following int    `json:"following" binding:"min=0"`
	Title     string `json:"title" binding:"max=100"`
}

// Normalize は文字列フィールドの前後の空白を除去する。パスワードは変更しない。
func (r *createMemberRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Login = strings.TrimSpace(r.Login)
	r.Email = strings.TrimSpace(r.Email)
	r.AvatarURL = strings.TrimSpace(r.AvatarURL)
	r.Title = strings.TrimSpace(r.Title)
}

// memberResponse はメンバーのJSONレスポンス構造。パスワードハッシュは含めない。
type memberResponse struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Login     string     `json:"login"`
	Email     string     `json:"email"`
	AvatarURL string     `json:"avatar_url"`
	Followers int        `json:"followers"`
	Following int        `json:"following"`
	Title     string     `json:"title"`
	IsDeleted bool       `json:"is_deleted"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func toMemberResponse(m Member) memberResponse {
	return memberResponse{
		ID:        m.ID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Login:     m.Login,
		Email:     m.Email,
		AvatarURL: m.AvatarURL,
		Followers: m.Followers,
		Following: m.Following,
		Title:     m.Title,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// handleToken はログイン名とパスワードを検証し、アクセストークンを発行するハンドラを返す。
func (s *Server) handleToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if appErr := request.Bind(c, &req); appErr != nil {
			apperror.Respond(c, appErr)
			return
		}

		m, err := s.store.FindByLogin(c.Request.Context(), req.Username)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// 応答時間で未登録を判別されないよう、ダミーのハッシュと比較する
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(req.Password))
			apperror.Respond(c, apperror.Authentication(invalidLoginMessage))
			return
		case err != nil:
			apperror.Respond(c, apperror.Database("メンバーの取得に失敗しました").WithCause(err))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(req.Password)); err != nil {
			apperror.Respond(c, apperror.Authentication(invalidLoginMessage))
			return
		}

		accessToken, err := s.authority.Issue(m.Login, s.now())
		if err != nil {
			apperror.Respond(c, apperror.Internal("トークンの発行に失敗しました").WithCause(err))
			return
		}
		log.Printf("[Member] トークンを発行しました: login=%s", m.Login)
		c.JSON(http.StatusOK, tokenResponse{AccessToken: accessToken, TokenType: "bearer"})
	}
}

// handleCreate はメンバー作成を処理するハンドラを返す。
// ログイン名とメールアドレスの重複を事前に確認し、書き込み時の衝突も同じDuplicateDataとして返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createMemberRequest
		if appErr := request.BindJSON(c, &req); appErr != nil {
			apperror.Respond(c, appErr)
			return
		}
		ctx := c.Request.Context()

		if taken, err := s.store.LoginTaken(ctx, req.Login); err != nil {
			apperror.Respond(c, apperror.Database("ログイン名の確認に失敗しました").WithCause(err))
			return
		} else if taken {
			apperror.Respond(c, duplicateError("login", req.Login))
			return
		}
		if taken, err := s.store.EmailTaken(ctx, req.Email); err != nil {
			apperror.Respond(c, apperror.Database("メールアドレスの確認に失敗しました").WithCause(err))
			return
		} else if taken {
			apperror.Respond(c, duplicateError("email", req.Email))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
		if err != nil {
			apperror.Respond(c, apperror.Internal("パスワードのハッシュ化に失敗しました").WithCause(err))
			return
		}

		m := Member{
			ID:           uuid.NewString(),
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Login:        req.Login,
			Email:        req.Email,
			PasswordHash: string(hash),
			AvatarURL:    req.AvatarURL,
			Followers:    req.Followers,
			Following:    req.Following,
			Title:        req.Title,
			CreatedAt:    s.now(),
		}
		if err := s.store.Create(ctx, m); err != nil {
			var conflict *storage.ConflictError
			if errors.As(err, &conflict) {
				apperror.Respond(c, duplicateError(conflict.Field, valueOf(m, conflict.Field)))
				return
			}
			apperror.Respond(c, apperror.Database("メンバーの登録に失敗しました").WithCause(err))
			return
		}

		log.Printf("[Member] メンバーを作成しました: id=%s, login=%s", m.ID, m.Login)
		m.CreatedAt = storage.FromMillis(storage.ToMillis(m.CreatedAt))
		c.JSON(http.StatusCreated, toMemberResponse(m))
	}
}

// handleList は有効なメンバー一覧を返すハンドラを返す。0件の場合はNoDataFound。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := s.store.List(c.Request.Context())
		if err != nil {
			apperror.Respond(c, apperror.Database("メンバー一覧の取得に失敗しました").WithCause(err))
			return
		}
		if len(members) == 0 {
			apperror.Respond(c, apperror.NoDataFound("有効なメンバーが存在しません"))
			return
		}

		responses := make([]memberResponse, 0, len(members))
		for _, m := range members {
			responses = append(responses, toMemberResponse(m))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGet は指定IDの有効なメンバーを返すハンドラを返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		m, err := s.store.Get(c.Request.Context(), id)
		if err != nil {
			apperror.Respond(c, s.lookupError(err, id))
			return
		}
		c.JSON(http.StatusOK, toMemberResponse(m))
	}
}

// handleDeleteAll は有効なメンバーをすべて論理削除するハンドラを返す。
func (s *Server) handleDeleteAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.SoftDeleteAll(c.Request.Context(), s.now())
		if err != nil {
			apperror.Respond(c, apperror.Database("メンバーの一括削除に失敗しました").WithCause(err))
			return
		}
		log.Printf("[Member] メンバーを一括で論理削除しました: count=%d, by=%s", n, middleware.GetLogin(c))
		c.JSON(http.StatusOK, gin.H{"message": "All members have been soft deleted", "deleted": n})
	}
}

// handleDelete は指定IDのメンバーを論理削除するハンドラを返す。
// 存在しない場合と削除済みの場合はどちらもNotFoundを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.store.SoftDelete(c.Request.Context(), id, s.now()); err != nil {
			apperror.Respond(c, s.lookupError(err, id))
			return
		}
		log.Printf("[Member] メンバーを論理削除しました: id=%s, by=%s", id, middleware.GetLogin(c))
		c.JSON(http.StatusOK, gin.H{"message": "Member has been soft deleted", "id": id})
	}
}

// handleHardDelete は指定IDのメンバーを物理削除するハンドラを返す。
func (s *Server) handleHardDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.store.HardDelete(c.Request.Context(), id); err != nil {
			apperror.Respond(c, s.lookupError(err, id))
			return
		}
		log.Printf("[Member] メンバーを物理削除しました: id=%s", id)
		c.JSON(http.StatusOK, gin.H{"message": "Member has been permanently deleted", "id": id})
	}
}

// lookupError はID指定操作のストアエラーをタクソノミーエラーに変換する。
func (s *Server) lookupError(err error, id string) *apperror.Error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.NotFound(fmt.Sprintf("メンバーが見つかりません: %s", id))
	}
	return apperror.Database("メンバーの操作に失敗しました").WithCause(err)
}

// duplicateError は一意制約違反をDuplicateDataに変換する。
func duplicateError(field string, value any) *apperror.Error {
	return apperror.DuplicateData(fmt.Sprintf("%sは既に使用されています", field), field, value)
}

// valueOf は衝突したフィールドの値を返す。
func valueOf(m Member, field string) any {
	switch field {
	case "login":
		return m.Login
	case "email":
		return m.Email
	case "id":
		return m.ID
	default:
		return nil
	}
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue []byte
)

// dummyHash は未登録ログイン時の比較に使うbcryptハッシュを返す。
func dummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = bcrypt.GenerateFromPassword([]byte("orghub-dummy-password"), bcrypt.DefaultCost)
	})
	return dummyHashValue
}

package feedback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/orghub/pkg/apperror"
	"github.com/nao1215/orghub/pkg/config"
	"github.com/nao1215/orghub/pkg/httpserver"
	"github.com/nao1215/orghub/pkg/middleware"
	"github.com/nao1215/orghub/pkg/request"
	"github.com/nao1215/orghub/pkg/storage"
	"github.com/nao1215/orghub/pkg/token"
)

// Server はフィードバックサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はフィードバックの永続化層。
	store Store
	// closer はストアの後始末。注入されたストアの場合はnil。
	closer func() error
	// authority はトークンの検証を行う。
	authority *token.Authority
	// maintenanceKey は内部メンテナンスAPIの認証キー。
	maintenanceKey string
	// now は現在時刻を返す。
	now func() time.Time
}

// NewServer は設定からフィードバックサーバーを生成する。
func NewServer(ctx context.Context, cfg config.Feedback) (*Server, error) {
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
	return s, nil
}

func newServer(store Store, authority *token.Authority, port, maintenanceKey string) *Server {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger("feedback"))
	router.Use(middleware.Recovery())

	s := &Server{
		router:         router,
		port:           port,
		store:          store,
		authority:      authority,
		maintenanceKey: maintenanceKey,
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
	return httpserver.Serve(ctx, "feedback", s.port, s.router)
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
	feedbacks := s.router.Group("/feedback")
	feedbacks.Use(middleware.BearerAuth(s.authority, func() time.Time { return s.now() }))
	{
		feedbacks.POST("/", s.handleCreate())
		feedbacks.GET("/", s.handleList())
		feedbacks.DELETE("/", s.handleDeleteAll())
		feedbacks.GET("/:id", s.handleGet())
		feedbacks.DELETE("/:id", s.handleDelete())
	}

	internal := s.router.Group("/internal/feedback")
	internal.Use(middleware.MaintenanceKey(s.maintenanceKey))
	{
		internal.DELETE("/:id/hard", s.handleHardDelete())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "feedback"})
	})

	s.router.NoRoute(func(c *gin.Context) {
		apperror.Respond(c, apperror.NotFound("指定されたパスは存在しません"))
	})
}

// createFeedbackRequest はフィードバック作成リクエストのJSON構造。
type createFeedbackRequest struct {
	// Feedback はフィードバック本文。
	Feedback string `json:"feedback" binding:"required,max=1000"`
}

// Normalize は本文の前後の空白を除去する。
func (r *createFeedbackRequest) Normalize() {
	r.Feedback = strings.TrimSpace(r.Feedback)
}

// feedbackResponse はフィードバックのJSONレスポンス構造。
type feedbackResponse struct {
	ID        string     `json:"id"`
	Feedback  string     `json:"feedback"`
	Author    string     `json:"author"`
	IsDeleted bool       `json:"is_deleted"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func toFeedbackResponse(f Feedback) feedbackResponse {
	return feedbackResponse{
		ID:        f.ID,
		Feedback:  f.Feedback,
		Author:    f.Author,
		IsDeleted: f.IsDeleted,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// handleCreate はフィードバック作成を処理するハンドラを返す。
// 投稿者は検証済みトークンのログイン名とする。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		author := middleware.GetLogin(c)

		var req createFeedbackRequest
		if appErr := request.BindJSON(c, &req); appErr != nil {
			apperror.Respond(c, appErr)
			return
		}
		ctx := c.Request.Context()

		exists, err := s.store.Exists(ctx, author, req.Feedback)
		if err != nil {
			apperror.Respond(c, apperror.Database("フィードバックの確認に失敗しました").WithCause(err))
			return
		}
		if exists {
			apperror.Respond(c, duplicateError(req.Feedback))
			return
		}

		f := Feedback{
			ID:        uuid.NewString(),
			Feedback:  req.Feedback,
			Author:    author,
			CreatedAt: storage.FromMillis(storage.ToMillis(s.now())),
		}
		if err := s.store.Create(ctx, f); err != nil {
			var conflict *storage.ConflictError
			if errors.As(err, &conflict) {
				apperror.Respond(c, duplicateError(req.Feedback))
				return
			}
			apperror.Respond(c, apperror.Database("フィードバックの登録に失敗しました").WithCause(err))
			return
		}

		log.Printf("[Feedback] フィードバックを作成しました: id=%s, author=%s", f.ID, author)
		c.JSON(http.StatusCreated, toFeedbackResponse(f))
	}
}

// handleList は有効なフィードバック一覧を返すハンドラを返す。0件の場合はNoDataFound。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		feedbacks, err := s.store.List(c.Request.Context())
		if err != nil {
			apperror.Respond(c, apperror.Database("フィードバック一覧の取得に失敗しました").WithCause(err))
			return
		}
		if len(feedbacks) == 0 {
			apperror.Respond(c, apperror.NoDataFound("有効なフィードバックが存在しません"))
			return
		}

		responses := make([]feedbackResponse, 0, len(feedbacks))
		for _, f := range feedbacks {
			responses = append(responses, toFeedbackResponse(f))
		}
		c.JSON(http.StatusOK, responses)
	}
}

func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		f, err := s.store.Get(c.Request.Context(), id)
		if err != nil {
			apperror.Respond(c, lookupError(err, id))
			return
		}
		c.JSON(http.StatusOK, toFeedbackResponse(f))
	}
}

func (s *Server) handleDeleteAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.SoftDeleteAll(c.Request.Context(), s.now())
		if err != nil {
			apperror.Respond(c, apperror.Database("フィードバックの一括削除に失敗しました").WithCause(err))
			return
		}
		log.Printf("[Feedback] フィードバックを一括で論理削除しました: count=%d, by=%s", n, middleware.GetLogin(c))
		c.JSON(http.StatusOK, gin.H{"message": "All feedbacks have been soft deleted", "deleted": n})
	}
}

// handleDelete は指定IDのフィードバックを論理削除するハンドラを返す。
// 存在しない場合と削除済みの場合はどちらもNotFoundを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.store.SoftDelete(c.Request.Context(), id, s.now()); err != nil {
			apperror.Respond(c, lookupError(err, id))
			return
		}
		log.Printf("[Feedback] フィードバックを論理削除しました: id=%s, by=%s", id, middleware.GetLogin(c))
		c.JSON(http.StatusOK, gin.H{"message": "Feedback has been soft deleted", "id": id})
	}
}

func (s *Server) handleHardDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.store.HardDelete(c.Request.Context(), id); err != nil {
			apperror.Respond(c, lookupError(err, id))
			return
		}
		log.Printf("[Feedback] フィードバックを物理削除しました: id=%s", id)
		c.JSON(http.StatusOK, gin.H{"message": "Feedback has been permanently deleted", "id": id})
	}
}

func lookupError(err error, id string) *apperror.Error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.NotFound(fmt.Sprintf("フィードバックが見つかりません: %s", id))
	}
	return apperror.Database("フィードバックの操作に失敗しました").WithCause(err)
}

func duplicateError(text string) *apperror.Error {
	return apperror.DuplicateData("同じ内容のフィードバックが既に存在します", "feedback", text)
}

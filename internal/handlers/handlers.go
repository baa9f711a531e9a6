package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"imageguard/api/internal/config"
	"imageguard/api/internal/middleware"
	"imageguard/api/internal/moderation"
	"imageguard/api/internal/repository"
	"imageguard/api/internal/service"
	"imageguard/api/internal/storage"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	screener *moderation.Service
	library  *service.LibraryService
	db       *pgxpool.Pool
	cache    *redis.Client
	store    *storage.ObjectStore
	images   *repository.ImageRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, screener *moderation.Service, cfg *config.AppConfig) HandlerSet {
	imageRepo := repository.NewImageRepository(db)
	queue := service.NewReviewQueue(cache, cfg.Moderation.AppealBoost)
	library := service.NewLibraryService(imageRepo, store, screener, queue, cfg.Moderation, log)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		screener: screener,
		library:  library,
		db:       db,
		cache:    cache,
		store:    store,
		images:   imageRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	screen := v1.Group("/screen")
	screen.Use(middleware.Identity())
	screen.POST("", h.ScreenImage)
	screen.POST("/batch", h.ScreenBatch)
	screen.POST("/url", h.ScreenURL)

	library := v1.Group("/library")
	library.Use(middleware.Identity())
	library.POST("", h.UploadImage)
	library.GET("", h.ListImages)
	library.GET("/:imageId", h.GetImage)
	library.GET("/:imageId/url", h.GetImageURL)
	library.POST("/:imageId/appeal", h.SubmitAppeal)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Identity(),
		middleware.RequireAdmin(),
	)
	admin.GET("/review", h.ReviewQueue)
	admin.POST("/review/bulk", h.BulkReview)
	admin.POST("/review/:imageId", h.ReviewImage)
}

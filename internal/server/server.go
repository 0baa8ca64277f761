package server

import (
	"context"
	"net/http"
	"time"

	"studiofit/internal/auth"
	"studiofit/internal/booking"
	"studiofit/internal/checkin"
	"studiofit/internal/config"
	"studiofit/internal/member"
	"studiofit/internal/notify"
	"studiofit/internal/studio"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	notify *notify.Service
}

func New(db *sqlx.DB, cfg *config.Config, notifyService *notify.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	memberRepo := member.NewRepository(db)
	memberService := member.NewService(memberRepo, cfg.JWTSecret)
	memberHandler := member.NewHandler(memberService, cfg.JWTSecret)

	studioRepo := studio.NewRepository(db)
	studioService := studio.NewService(studioRepo, notifyService)
	studioHandler := studio.NewHandler(studioService)

	tokens := checkin.NewResolver(cfg.JWTSecret, cfg.QRTokenTTL)
	bookingRepo := booking.NewRepository(db)
	bookingService := booking.NewService(bookingRepo, studioRepo, memberService, tokens, notifyService, cfg.BookingCutoff)
	bookingHandler := booking.NewHandler(bookingService)

	public := router.Group("/auth")
	{
		public.POST("/register", memberHandler.Register)
		public.POST("/login", memberHandler.Login)
		public.POST("/refresh", memberHandler.Refresh)
	}

	router.GET("/plans", memberHandler.ListPlans)
	router.GET("/studios", studioHandler.ListStudios)
	router.GET("/studios/:studioID", studioHandler.GetStudio)
	router.GET("/studios/:studioID/sessions", studioHandler.ListSessions)
	router.GET("/sessions/:sessionID", studioHandler.GetSession)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", memberHandler.GetMe)
		protected.POST("/memberships", memberHandler.PurchaseMembership)
		protected.GET("/memberships", memberHandler.ListMyMemberships)

		protected.GET("/sessions/:sessionID/eligibility", bookingHandler.CheckEligibility)
		protected.POST("/sessions/:sessionID/book", bookingHandler.BookSession)
		protected.GET("/sessions/:sessionID/qr", bookingHandler.GetCheckInQR)
		protected.POST("/bookings/:bookingID/cancel", bookingHandler.CancelBooking)
		protected.GET("/bookings", bookingHandler.ListMyBookings)
	}

	staff := router.Group("/staff")
	staff.Use(authMiddleware, auth.RequireRole("staff", "admin"))
	{
		staff.POST("/bookings/:bookingID/checkin", bookingHandler.CheckIn)
		staff.POST("/bookings/:bookingID/no-show", bookingHandler.MarkNoShow)
		staff.POST("/checkin/qr", bookingHandler.CheckInWithQR)
		staff.GET("/sessions/:sessionID/roster", bookingHandler.GetRoster)
		staff.GET("/sessions/:sessionID/waitlist", bookingHandler.GetWaitlist)
		staff.POST("/sessions/:sessionID/waitlist/:bookingID/promote", bookingHandler.PromoteFromWaitlist)
		staff.POST("/sessions/:sessionID/start", studioHandler.StartSession)
		staff.POST("/sessions/:sessionID/complete", studioHandler.CompleteSession)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole("admin"))
	{
		admin.POST("/studios", studioHandler.CreateStudio)
		admin.POST("/studios/:studioID/sessions", studioHandler.CreateSession)
		admin.POST("/sessions/:sessionID/cancel", studioHandler.CancelSession)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/system/queue", QueueLength(notifyService))
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		notify: notifyService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

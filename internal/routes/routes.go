package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/saeid-a/ConsultBack/internal/config"
	"github.com/saeid-a/ConsultBack/internal/handlers"
	"github.com/saeid-a/ConsultBack/internal/metrics"
	"github.com/saeid-a/ConsultBack/internal/middleware"
	"github.com/saeid-a/ConsultBack/internal/repository"
	"github.com/saeid-a/ConsultBack/internal/services"
	callws "github.com/saeid-a/ConsultBack/internal/websocket"
)

// RegisterRoutes wires repositories, services and handlers onto app. A nil
// registry disables metrics collection and the /metrics endpoint.
func RegisterRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *pgxpool.Pool,
	registry *prometheus.Registry,
	log zerolog.Logger,
) *callws.Relay {
	var recorder metrics.Recorder = metrics.Noop{}
	if registry != nil {
		recorder = metrics.NewCollector(registry)
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))
	}

	userRepo := repository.NewUserRepository(db)
	doctorProfileRepo := repository.NewDoctorProfileRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	doctors := services.NewDoctorDirectory(userRepo, doctorProfileRepo)
	generator := services.NewAvailabilityGenerator(scheduleRepo)
	guard := services.NewSlotGuard(generator, bookingRepo, cfg.SlotLeadTime, recorder, log)
	bookingService := services.NewBookingService(db, guard, doctors, log)
	sessionService := services.NewSessionService(sessionRepo, doctors, recorder, log)
	materializer := services.NewSessionMaterializer(sessionRepo, bookingRepo, doctors, recorder, log)
	relay := callws.NewRelay(cfg.RoomMaxPeers, recorder, log)

	availabilityHandler := handlers.NewAvailabilityHandler(guard)
	bookingHandler := handlers.NewBookingHandler(bookingService, materializer)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	signalingHandler := handlers.NewSignalingHandler(
		relay,
		sessionService,
		cfg.JWTSecret,
		cfg.SignalRatePerS,
		cfg.SignalRateBurst,
		log,
	)

	api := app.Group("/api")

	// The upgrade authenticates on its own since browsers cannot send headers.
	api.Use("/v1/ws", signalingHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(signalingHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	doctorsGroup := authProtected.Group("/doctors")
	doctorsGroup.Get("/:id/slots", availabilityHandler.ListSlots)

	bookings := authProtected.Group("/bookings")
	bookings.Post("", bookingHandler.Reserve)
	bookings.Post("/:id/call", bookingHandler.OpenCall)

	sessions := authProtected.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/call/prepare", sessionHandler.PrepareCall)
	sessions.Post("/:id/call/end", sessionHandler.EndCall)
	sessions.Post("/:id/cancel", sessionHandler.Cancel)

	return relay
}

package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"therapyhub/internal/delivery/http/controllers"
	"therapyhub/internal/delivery/http/middleware"
	"therapyhub/internal/domain"
)

// RouterDeps holds the controllers and collaborators the router wires together.
type RouterDeps struct {
	Logger                 *slog.Logger
	Verifier               domain.TokenVerifier
	AllowedOrigins         []string
	HealthController       *controllers.HealthController
	WorkshopController     *controllers.WorkshopController
	RegistrationController *controllers.RegistrationController
	PaymentController      *controllers.PaymentController
}

// NewRouter initializes the HTTP router with all application routes, wrapped in
// request logging and CORS.
func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()
	optional := middleware.OptionalAuth(d.Verifier, d.Logger)
	authed := middleware.RequireAuth(d.Verifier, d.Logger)
	admin := middleware.RequireAdmin(d.Verifier, d.Logger)

	ws, reg, pay := d.WorkshopController, d.RegistrationController, d.PaymentController

	mux.HandleFunc("GET /healthz", d.HealthController.Health)

	// Public site
	mux.HandleFunc("GET /workshops", ws.ListPublic)
	mux.HandleFunc("GET /workshops/{workshopID}", ws.GetPublic)
	mux.HandleFunc("POST /workshops/{workshopID}/registrations", optional(reg.Register))
	mux.HandleFunc("POST /workshops/{workshopID}/payment-intents", optional(pay.CreateIntent))
	mux.HandleFunc("POST /payments/webhook", pay.Webhook)
	mux.HandleFunc("GET /me/registrations", authed(reg.ListMine))

	// Administration
	mux.HandleFunc("GET /admin/workshops", admin(ws.ListAdmin))
	mux.HandleFunc("POST /admin/workshops", admin(ws.Create))
	mux.HandleFunc("GET /admin/workshops/{workshopID}", admin(ws.GetAdmin))
	mux.HandleFunc("PATCH /admin/workshops/{workshopID}", admin(ws.Update))
	mux.HandleFunc("DELETE /admin/workshops/{workshopID}", admin(ws.Delete))
	mux.HandleFunc("POST /admin/workshops/{workshopID}/publish", admin(ws.Publish))
	mux.HandleFunc("POST /admin/workshops/{workshopID}/cancel", admin(ws.Cancel))
	mux.HandleFunc("GET /admin/registrations", admin(reg.List))
	mux.HandleFunc("POST /admin/registrations/decisions", admin(reg.DecideBatch))
	mux.HandleFunc("PATCH /admin/registrations/{registrationID}/decision", admin(reg.Decide))
	mux.HandleFunc("POST /admin/registrations/{registrationID}/cancel", admin(reg.Cancel))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return middleware.CORS(d.AllowedOrigins, middleware.LoggingMiddleware(d.Logger, mux))
}

package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"ascend/internal/auth"
	"ascend/internal/gateway/handler"
	"ascend/internal/gateway/middleware"
	"ascend/internal/logger"
	"ascend/internal/metrics"
)

type RouterOptions struct {
	Log         logger.Logger
	Metrics     *metrics.Metrics
	Auth        auth.Provider
	CORSOrigins []string
	Limiter     *middleware.RateLimiter
}

const idPattern = "{id:[A-Za-z0-9_-]+}"

func NewMux(h *handler.Handler, opts RouterOptions) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	r := mux.NewRouter()
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	api.HandleFunc("/modes", h.Modes).Methods(http.MethodGet)

	// Generation
	api.Handle("/generate", opts.Limiter.Limit(http.HandlerFunc(h.Generate))).Methods(http.MethodPost)
	api.Handle("/chat", opts.Limiter.Limit(http.HandlerFunc(h.Chat))).Methods(http.MethodPost)
	r.Handle("/ws/generate", opts.Limiter.Limit(http.HandlerFunc(h.GenerateWS))).Methods(http.MethodGet)

	// Usage and device checks
	api.HandleFunc("/get-daily-usage", h.GetDailyUsage).Methods(http.MethodPost)
	api.HandleFunc("/increment-usage", h.IncrementUsage).Methods(http.MethodPost)
	api.HandleFunc("/check-spam", h.CheckSpam).Methods(http.MethodPost)
	api.HandleFunc("/register-device", h.RegisterDevice).Methods(http.MethodPost)

	// Vault
	api.HandleFunc("/blueprints", h.ListBlueprints).Methods(http.MethodGet)
	api.HandleFunc("/blueprints", h.SaveBlueprint).Methods(http.MethodPost)
	api.HandleFunc("/blueprints/"+idPattern, h.GetBlueprint).Methods(http.MethodGet)
	api.HandleFunc("/blueprints/"+idPattern, h.DeleteBlueprint).Methods(http.MethodDelete)
	api.HandleFunc("/blueprint/"+idPattern, h.DeleteBlueprint).Methods(http.MethodDelete)
	api.HandleFunc("/blueprints/"+idPattern+"/pin", h.PinBlueprint).Methods(http.MethodPut)
	api.HandleFunc("/blueprints/"+idPattern+"/export", h.ExportBlueprint).Methods(http.MethodGet)

	var out http.Handler = r
	out = auth.Middleware(opts.Auth, opts.Log)(out)
	out = middleware.CORS(opts.CORSOrigins)(out)
	out = middleware.Logging(opts.Log)(out)
	return middleware.RequestID(out)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/metrics"
	"github.com/camden-git/fieldsurvey/realtime"
	"github.com/camden-git/fieldsurvey/repository"
	"github.com/camden-git/fieldsurvey/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterDeps is everything the HTTP API is built from.
type RouterDeps struct {
	Users          repository.UserRepository
	Tokens         *TokenIssuer
	Surveys        *services.SurveyService
	Images         *services.ImageService
	Editors        *services.EditorManager
	Exporter       *services.Exporter
	Uploader       *media.Uploader
	Store          media.Store
	Processor      *media.Processor
	Hub            *realtime.Hub // nil disables /api/ws
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	MaxUploadBytes int64
}

// MediaRoute is where stored media is served when the public media URL
// points back at this server.
const MediaRoute = "/api/media"

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)
	r.Use(deps.Metrics.Middleware)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := &AuthHandler{UserRepo: deps.Users, Tokens: deps.Tokens}
	surveyHandler := &SurveyHandler{Surveys: deps.Surveys, Exporter: deps.Exporter, Uploader: deps.Uploader}
	imageHandler := &ImageHandler{Images: deps.Images, MaxUploadBytes: deps.MaxUploadBytes}
	editorHandler := &EditorHandler{
		Editors:   deps.Editors,
		Images:    deps.Images,
		Processor: deps.Processor,
		Renderer:  annotation.NewRenderer(),
	}
	requireAuth := RequireAuth(deps.Tokens, deps.Users)

	r.Route("/api", func(r chi.Router) {
		// websocket connections outlive the request timeout
		if deps.Hub != nil {
			r.With(requireAuth).Get("/ws", Events(deps.Hub))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/register", authHandler.Register)
			r.Get("/options", Options)
			if deps.Store != nil {
				r.Get("/media/*", AssetServer(deps.Store, MediaRoute))
			}

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/auth/me", authHandler.CurrentUser)

				r.Route("/surveys", func(r chi.Router) {
					r.Get("/", surveyHandler.List)
					r.Post("/", surveyHandler.Create)
					r.Route("/{survey_id}", func(r chi.Router) {
						r.Get("/", surveyHandler.Get)
						r.Put("/", surveyHandler.Update)
						r.Delete("/", surveyHandler.Delete)
						r.Get("/blocks", surveyHandler.Blocks)
						r.Get("/export", surveyHandler.Export)
						r.Route("/images/{image_id}", func(r chi.Router) {
							r.Put("/annotations", surveyHandler.PutAnnotations)
							r.Get("/render", surveyHandler.Render)
							r.Post("/editor", editorHandler.Open)
						})
					})
				})

				r.Route("/images", func(r chi.Router) {
					r.Get("/", imageHandler.List)
					r.Post("/", imageHandler.Upload)
					r.Route("/{image_id}", func(r chi.Router) {
						r.Get("/", imageHandler.Get)
						r.Delete("/", imageHandler.Delete)
					})
				})

				r.Route("/editors/{editor_id}", func(r chi.Router) {
					r.Get("/", editorHandler.Get)
					r.Post("/events", editorHandler.Events)
					r.Get("/preview.png", editorHandler.Preview)
					r.Post("/save", editorHandler.Save)
					r.Post("/cancel", editorHandler.Cancel)
				})
			})
		})
	})

	return r
}

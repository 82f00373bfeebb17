package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/pbinitiative/spaceflake/internal/appcontext"
)

func Cors() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", appcontext.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Length", appcontext.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	})
}

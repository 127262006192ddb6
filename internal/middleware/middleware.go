package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/georiviere/georiviere-api/internal/utils"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

type SessionFetcher interface {
	FindSessionByID(id string) (utils.SessionData, error)
}

// RoleFetcher resolves the role of an authenticated user.
type RoleFetcher interface {
	FindRoleByUserID(userID string) (string, error)
}

func SessionMiddleware(fetcher SessionFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_id")
			if err != nil {
				http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
				return
			}

			session, err := fetcher.FindSessionByID(cookie.Value)
			if err != nil {
				http.Error(w, "Couldn't find session", http.StatusUnauthorized)
				return
			}

			if session.Expired(time.Now()) {
				http.Error(w, "Session expired", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithUserID(r.Context(), session.UserID)))
		})
	}
}

// CORSMiddleware echoes the request origin back when it is in origins.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization")
			}

			w.Header().Set("Access-Control-Expose-Headers", "Retry-After")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RoleMiddleware lets the request through when the session user has one of
// roles. It must run after SessionMiddleware.
func RoleMiddleware(fetcher RoleFetcher, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
				return
			}

			role, err := fetcher.FindRoleByUserID(userID)
			if err != nil {
				http.Error(w, "Unauthorized: user not found", http.StatusUnauthorized)
				return
			}

			for _, want := range roles {
				if role == want {
					next.ServeHTTP(w, r.WithContext(utils.WithRole(r.Context(), role)))
					return
				}
			}
			http.Error(w, "Forbidden: "+strings.Join(roles, " or ")+" access required", http.StatusForbidden)
		})
	}
}

// AdminMiddleware only admits administrators.
func AdminMiddleware(fetcher RoleFetcher) func(http.Handler) http.Handler {
	return RoleMiddleware(fetcher, "admin")
}

// StaffMiddleware admits moderators and administrators.
func StaffMiddleware(fetcher RoleFetcher) func(http.Handler) http.Handler {
	return RoleMiddleware(fetcher, "admin", "staff")
}

// RateLimit applies a token bucket per client IP. Idle buckets are evicted
// after ten minutes.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	buckets := cache.New(10*time.Minute, 20*time.Minute)

	limiterFor := func(key string) *rate.Limiter {
		if v, ok := buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
		l := rate.NewLimiter(rate.Limit(perSecond), burst)
		if err := buckets.Add(key, l, cache.DefaultExpiration); err != nil {
			// another request created it first
			if v, ok := buckets.Get(key); ok {
				return v.(*rate.Limiter)
			}
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			l := limiterFor(key)
			buckets.SetDefault(key, l)

			if !l.Allow() {
				retry := time.Duration(float64(time.Second) / max(perSecond, 0.001))
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds()+0.999)))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

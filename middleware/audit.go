package middleware

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/naviport/portaccess/models"
	"github.com/naviport/portaccess/repositories"
)

// maxAuditBody caps how much of a request body is copied into the audit log
const maxAuditBody = 16 * 1024

// AuditLogger middleware logs all POST/PUT/DELETE requests
func AuditLogger(auditRepo repositories.AuditRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only log mutation operations
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
				entry := &models.AuditLogEntry{
					Actor:     Actor(r),
					Method:    r.Method,
					Path:      r.URL.Path,
					UserAgent: r.UserAgent(),
					IPAddress: getIPAddress(r),
					FormData:  captureBody(r),
				}

				// Log asynchronously to avoid blocking the request
				go func() {
					if err := auditRepo.Create(entry); err != nil {
						log.Printf("Failed to create audit log: %v", err)
					}
				}()
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Actor returns the acting party declared by the caller. Identity is
// established by the gateway in front of this service; an empty value means
// the action is system-originated.
func Actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor"))
}

// getIPAddress extracts IP address from request, checking X-Forwarded-For first
func getIPAddress(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take first IP if multiple
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	// Remove port if present
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// captureBody copies the request body for the audit record and restores it
// for the handler
func captureBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBody))
	if err != nil {
		return ""
	}
	rest, err := io.ReadAll(r.Body)
	if err == nil {
		data = append(data, rest...)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	if len(data) > maxAuditBody {
		return string(data[:maxAuditBody])
	}
	return string(data)
}

package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"vyvoz/internal/config"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

const (
	PermissionReadSlots   = "read:slots"
	PermissionReadSummary = "read:summary"
)

// HTTPAuth проверяет пару заголовков api key + extra и ограничивает частоту
// запросов на клиента.
type HTTPAuth struct {
	cfg         config.APIConfig
	clients     map[string]config.APIClientKey
	limiter     *rateLimiter
	keyHeader   string
	extraHeader string
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}

	keyHeader := strings.TrimSpace(cfg.Auth.HeaderAPIKey)
	if keyHeader == "" {
		keyHeader = "x-api-key"
	}
	extraHeader := strings.TrimSpace(cfg.Auth.HeaderExtra)
	if extraHeader == "" {
		extraHeader = "x-api-extra"
	}

	return &HTTPAuth{
		cfg:         cfg,
		clients:     m,
		limiter:     newRateLimiter(cfg.RateLimit),
		keyHeader:   keyHeader,
		extraHeader: extraHeader,
	}
}

// Require оборачивает обработчик, которому нужно право permission.
func (a *HTTPAuth) Require(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r, permission); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if !a.limiter.Allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request, permission string) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader))
	if apiKey == "" || extra == "" {
		return errMissingKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}

	// клиент без списка прав видит всё
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == permission {
			return nil
		}
	}
	return errPermissionDenied
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

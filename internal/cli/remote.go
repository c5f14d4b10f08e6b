package cli

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"timed-quiz-service/internal/client"
	"timed-quiz-service/internal/config"
)

// newAPIClient builds the backend client. The --api-url flag or QUIZ_API_URL
// wins over client.api_url.
func newAPIClient(cfg config.Config, urlOverride string, logger *zap.Logger) *client.Client {
	baseURL := urlOverride
	if baseURL == "" {
		baseURL = cfg.Client.APIURL
	}
	return client.New(baseURL, client.Options{
		HTTPClient:  &http.Client{Timeout: config.TTLDuration(cfg.Client.Timeout, 10*time.Second)},
		MaxRetries:  cfg.Client.MaxRetries,
		RetryDelay:  config.TTLDuration(cfg.Client.RetryDelay, client.DefaultRetryDelay),
		AdminSecret: cfg.Admin.Secret,
		Logger:      logger.Named("client"),
	})
}

package network

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------

// NetworkManager performs outbound HTTP requests for the provider client.
// Connect/read timeouts feed directly into circuit breaker failure counting.
type NetworkManager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewNetworkManager(cfg *models.MConfig, log *logger.Logger) *NetworkManager {
	return &NetworkManager{
		Config: cfg,
		Logger: log,
		Client: &http.Client{
			Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request to the specified URL with parameters.
func (nm *NetworkManager) Get(urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, reqUrl.String(), nil)
	if err != nil {
		return nil, err
	}
	if ua := nm.Config.Provider.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, reqUrl.Host)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	nm.Logger.Debug("GET %s -> %d bytes", reqUrl.String(), len(body))
	return body, nil
}

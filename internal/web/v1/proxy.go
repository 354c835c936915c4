package v1

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// hopHeaders are stripped from proxied requests and responses.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyHandler forwards authenticated panel calls to the Headscale
// management API. The upstream URL and API key come exclusively from server
// configuration: client-supplied credentials or upstream addresses are never
// honored, and TLS verification stays on.
type ProxyHandler struct {
	upstream *url.URL
	apiKey   string
	client   *http.Client
}

// NewProxyHandler creates a ProxyHandler for the given upstream base URL.
func NewProxyHandler(upstream, apiKey string) (*ProxyHandler, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	return &ProxyHandler{
		upstream: u,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// RegisterRoutes mounts the proxy under /headscale/*path on the given group.
func (p *ProxyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Any("/headscale/*path", p.Proxy)
}

// Proxy forwards the request body and query string upstream and relays the
// response verbatim.
func (p *ProxyHandler) Proxy(c *gin.Context) {
	logger := zerolog.Ctx(c.Request.Context())

	target := *p.upstream
	target.Path = strings.TrimSuffix(target.Path, "/") + c.Param("path")
	target.RawQuery = c.Request.URL.RawQuery

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target.String(), c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach Headscale"})
		return
	}

	if ct := c.GetHeader("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", "application/json")
	// Server-side credential only. The panel session cookie and any client
	// Authorization header stop here.
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error().Err(err).Str("target", target.String()).Msg("Headscale request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach Headscale"})
		return
	}
	defer resp.Body.Close()

	header := c.Writer.Header()
	for k, vv := range resp.Header {
		if isHopHeader(k) {
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}

	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logger.Error().Err(err).Msg("Headscale response copy failed")
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

package httputil

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"househunters/config"
)

// Clients bundles the two HTTP clients the providers need: Unlocker routes
// through the Bright Data proxy (TLS verification off, as the unlocker
// re-signs responses), Direct goes straight out.
type Clients struct {
	Unlocker *retryablehttp.Client
	Direct   *retryablehttp.Client
}

func NewClients(bd *config.BrightDataConfig) *Clients {
	unlocker := newRetryClient(60 * time.Second)

	if proxyURL := ProxyURL(bd); proxyURL != nil {
		unlocker.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Clients{
		Unlocker: unlocker,
		Direct:   newRetryClient(30 * time.Second),
	}
}

func newRetryClient(timeout time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 8 * time.Second
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	return rc
}

// ProxyURL builds the unlocker proxy URL, or nil when the proxy is disabled
// or credentials are missing. The password is escaped in case it carries
// special characters.
func ProxyURL(bd *config.BrightDataConfig) *url.URL {
	if bd == nil || !bd.Enabled || bd.Username == "" || bd.Password == "" {
		return nil
	}
	raw := fmt.Sprintf("http://%s:%s@%s:%d",
		bd.Username, url.QueryEscape(bd.Password), bd.Host, bd.Port)
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

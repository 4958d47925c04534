package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cavaliercoder/grab"

	"github.com/earthpulse/imagery-ingester/service"
	"github.com/earthpulse/imagery-ingester/service/log"
)

// maxRedirectHops bounds the node-resolution redirect chains
const maxRedirectHops = 10

// ErrRedirectLoop is returned when a redirect chain exceeds maxRedirectHops
type ErrRedirectLoop struct {
	URL string
}

func (e ErrRedirectLoop) Error() string {
	return fmt.Sprintf("stopped after %d redirects: %s", maxRedirectHops, e.URL)
}

// ErrProductNotFound is an error returned when a product is not found or available
type ErrProductNotFound struct {
	Product string
}

func (e ErrProductNotFound) Error() string {
	return fmt.Sprintf("Product not found or unavailable: %s", e.Product)
}

// checkRedirectAndCopyAuth follows Location redirections up to maxRedirectHops,
// re-applying the Authorization header of the original request on every hop
func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirectHops {
		return ErrRedirectLoop{URL: req.URL.String()}
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Add("Authorization", auth[0])
	}
	return nil
}

// getWithAuth performs a bearer-authenticated GET, following redirects within
// the hop bound, and returns the body of the final response
func getWithAuth(ctx context.Context, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("getWithAuth.NewRequest: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := http.Client{CheckRedirect: checkRedirectAndCopyAuth}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getWithAuth[%s]: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("getWithAuth[%s]: %s (response: %s)", url, resp.Status, body)
		switch resp.StatusCode {
		case 404:
			return nil, ErrProductNotFound{Product: url}
		case 408, 429, 500, 501, 502, 503, 504:
			return nil, service.MakeTemporary(err)
		default:
			return nil, err
		}
	}
	return io.ReadAll(resp.Body)
}

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

// downloadFileWithAuth streams the resource at url to the local file dst,
// following redirects within the hop bound with the Authorization re-applied
func downloadFileWithAuth(ctx context.Context, url, dst, token, displayPrefix string) error {
	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return fmt.Errorf("downloadFileWithAuth.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)
	req.HTTPRequest.Header.Set("Authorization", "Bearer "+token)

	client := grab.NewClient()
	client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch resp.HTTPResponse.StatusCode {
		case 404:
			return ErrProductNotFound{Product: req.URL().String()}
		case 408, 429, 500, 501, 502, 503, 504:
			return service.MakeTemporary(err)
		default:
			return err
		}
	}
	return nil
}

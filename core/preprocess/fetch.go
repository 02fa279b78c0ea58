package preprocess

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adalundhe/prism/core/errors"
)

// Fetcher downloads remote image bytes with size and time bounds. The fetch
// is idempotent and never mutates the source.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher with the given payload ceiling and timeout.
func NewFetcher(maxBytes int64, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			// Redirects could sidestep the pre-fetch address validation.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the URL, enforcing the payload ceiling while reading.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.KindValidation, fmt.Sprintf("building request for %q", url), err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(errors.KindTimeout, fmt.Sprintf("fetching %q", url), err)
		}
		return nil, errors.New(errors.KindNetwork, fmt.Sprintf("fetching %q", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.KindNetwork, fmt.Sprintf("fetching %q: status %d", url, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.New(errors.KindNetwork, fmt.Sprintf("reading body of %q", url), err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.New(errors.KindValidation,
			fmt.Sprintf("payload of %q exceeds %d byte limit", url, f.maxBytes), nil)
	}

	return data, nil
}

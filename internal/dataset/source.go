// Package dataset provides the raw shelter tables consumed by the parser.
package dataset

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source yields a raw shelter table: one name,address,phone,type,latitude,longitude
// record per line.
type Source interface {
	Name() string
	// Remote reports whether loading needs the network.
	Remote() bool
	Load(ctx context.Context) (string, error)
}

//go:embed data/shelters.csv
var bundledTable string

// Bundled serves the table shipped with the binary.
type Bundled struct{}

func (Bundled) Name() string { return "bundled" }

func (Bundled) Remote() bool { return false }

func (Bundled) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return bundledTable, nil
}

// File reads a table from disk on every Load.
type File struct {
	Path string
}

func (f File) Name() string { return "file" }

func (f File) Remote() bool { return false }

func (f File) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("reading dataset file: %w", err)
	}
	return string(data), nil
}

const maxRemoteTableBytes = 8 << 20

var ErrTooLarge = errors.New("dataset exceeds size limit")

// HTTP fetches a table from a remote URL. Concurrent loads share one request.
type HTTP struct {
	url    string
	client *http.Client
	group  singleflight.Group
}

func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *HTTP) Name() string { return "remote" }

func (h *HTTP) Remote() bool { return true }

func (h *HTTP) Load(ctx context.Context) (string, error) {
	// the shared fetch outlives any single caller; the client timeout bounds it
	fetchCtx := context.WithoutCancel(ctx)
	ch := h.group.DoChan(h.url, func() (any, error) {
		return h.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (h *HTTP) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteTableBytes+1))
	if err != nil {
		return "", fmt.Errorf("error reading body: %w", err)
	}
	if len(body) > maxRemoteTableBytes {
		return "", ErrTooLarge
	}
	return string(body), nil
}

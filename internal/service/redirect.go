package service

import (
	"context"
	"crypto/tls"
	"net/http"
	"strconv"
	"strings"
	"time"

	"domainatlas/internal/utils"
)

// RedirectResult describes where a URL's web traffic ends up. Codes holds
// the redirect status codes along the way, "; "-joined; Hops counts them.
type RedirectResult struct {
	FinalURL string `json:"final_url"`
	Hops     int    `json:"hops"`
	Codes    string `json:"codes"`
}

type RedirectService struct {
	MaxHops int
	client  *http.Client
}

// NewRedirectService builds a follower that walks Location headers itself.
// Certificate validation is off: a fair share of public-sector sites serve
// broken chains and the goal is to see where traffic lands, not to audit TLS.
func NewRedirectService(maxHops int) *RedirectService {
	return &RedirectService{
		MaxHops: maxHops,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Follow issues HEAD requests along a URL's redirect chain and reports the
// final URL, hop count and status codes. An HTTPS chain that cannot even
// start is retried over plain HTTP. When both fail the input URL comes back
// with zero hops, so the caller records "no redirect" rather than aborting.
func (s *RedirectService) Follow(ctx context.Context, rawURL string) RedirectResult {
	if strings.TrimSpace(rawURL) == "" {
		return RedirectResult{}
	}

	res, err := s.walk(ctx, rawURL)
	if err == nil {
		return res
	}
	if strings.HasPrefix(rawURL, "https://") {
		if res, retryErr := s.walk(ctx, "http://"+strings.TrimPrefix(rawURL, "https://")); retryErr == nil {
			return res
		}
	}
	utils.Log.Warn("redirect walk failed", utils.Field("url", rawURL), utils.Field("error", err.Error()))
	return RedirectResult{FinalURL: rawURL}
}

func (s *RedirectService) walk(ctx context.Context, rawURL string) (RedirectResult, error) {
	current := rawURL
	var codes []string
	hops := 0

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return RedirectResult{}, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return RedirectResult{}, err
		}
		_ = resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			break
		}
		location := resp.Header.Get("Location")
		if location == "" {
			break
		}
		next, err := resp.Request.URL.Parse(location)
		if err != nil {
			break
		}

		codes = append(codes, strconv.Itoa(resp.StatusCode))
		hops++
		current = next.String()
		if hops >= s.MaxHops {
			break
		}
	}

	return RedirectResult{FinalURL: current, Hops: hops, Codes: strings.Join(codes, "; ")}, nil
}

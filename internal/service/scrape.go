package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"domainatlas/internal/model"
	"domainatlas/internal/utils"

	"golang.org/x/net/html"
)

// DirectoryService scrapes the island.is organization directory. The pages
// are Next.js renders, so the data comes from the embedded __NEXT_DATA__
// JSON rather than the visible markup.
type DirectoryService struct {
	BaseURL string
	client  *http.Client
}

func NewDirectoryService(baseURL string) *DirectoryService {
	return &DirectoryService{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type directoryItem struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Link  string          `json:"link"`
	Tag   json.RawMessage `json:"tag"`
}

// tagTitle handles both shapes the directory serves: a list of tags (first
// one wins) or a single tag object.
func (it directoryItem) tagTitle() string {
	if len(it.Tag) == 0 {
		return ""
	}
	var list []struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(it.Tag, &list); err == nil {
		if len(list) > 0 {
			return list[0].Title
		}
		return ""
	}
	var single struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(it.Tag, &single); err == nil {
		return single.Title
	}
	return ""
}

type nextData struct {
	Props struct {
		PageProps struct {
			PageProps struct {
				PageProps struct {
					ComponentProps struct {
						Organizations struct {
							Items []directoryItem `json:"items"`
						} `json:"organizations"`
					} `json:"componentProps"`
				} `json:"pageProps"`
			} `json:"pageProps"`
		} `json:"pageProps"`
	} `json:"props"`
}

// FetchOrganizations scrapes the Icelandic and English directory variants
// and merges them by organization id. Organizations without a link are kept
// with an empty URL and domain; downstream stages skip the lookups but the
// organization still counts.
func (s *DirectoryService) FetchOrganizations(ctx context.Context) ([]model.Organization, error) {
	itemsIS, err := s.fetchItems(ctx, s.BaseURL+"/s")
	if err != nil {
		return nil, fmt.Errorf("icelandic directory: %w", err)
	}
	itemsEN, err := s.fetchItems(ctx, s.BaseURL+"/en/o")
	if err != nil {
		return nil, fmt.Errorf("english directory: %w", err)
	}

	englishName := make(map[string]string, len(itemsEN))
	englishTag := make(map[string]string, len(itemsEN))
	for _, it := range itemsEN {
		englishName[it.ID] = it.Title
		englishTag[it.ID] = it.tagTitle()
	}

	orgs := make([]model.Organization, 0, len(itemsIS))
	for _, it := range itemsIS {
		orgURL := s.buildURL(it.Link)
		orgs = append(orgs, model.Organization{
			NameIcelandic: it.Title,
			NameEnglish:   englishName[it.ID],
			TagIcelandic:  it.tagTitle(),
			TagEnglish:    englishTag[it.ID],
			URL:           orgURL,
			Domain:        utils.ExtractDomain(orgURL),
		})
	}

	utils.Log.Info("directory scraped",
		utils.Field("icelandic", len(itemsIS)),
		utils.Field("english", len(itemsEN)))
	return orgs, nil
}

func (s *DirectoryService) fetchItems(ctx context.Context, pageURL string) ([]directoryItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status fetching %s: %s", pageURL, resp.Status)
	}

	payload, err := extractNextData(resp.Body)
	if err != nil {
		return nil, err
	}

	var data nextData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decoding __NEXT_DATA__: %w", err)
	}
	return data.Props.PageProps.PageProps.PageProps.ComponentProps.Organizations.Items, nil
}

// buildURL resolves an organization link: absolute URLs pass through,
// island.is-relative paths get the base prepended.
func (s *DirectoryService) buildURL(link string) string {
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return s.BaseURL + "/" + strings.TrimPrefix(link, "/")
}

// extractNextData finds the <script id="__NEXT_DATA__"> element and returns
// its JSON body.
func extractNextData(r io.Reader) ([]byte, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var payload string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, attr := range n.Attr {
				if attr.Key == "id" && attr.Val == "__NEXT_DATA__" {
					if n.FirstChild != nil {
						payload = n.FirstChild.Data
					}
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)

	if payload == "" {
		return nil, errors.New("__NEXT_DATA__ script not found")
	}
	return []byte(payload), nil
}

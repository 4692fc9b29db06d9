// Package linkpreview scrapes the title, description and image of a web page
// for rich link messages.
package linkpreview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxBody = 2 << 20

var httpClient = &http.Client{Timeout: 5 * time.Second}

type Preview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Fetch downloads link and extracts Open Graph data, falling back to the
// <title> element and the description meta tag.
func Fetch(ctx context.Context, link string) (Preview, error) {
	var out Preview
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return out, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; EduChatBot/1.0)")
	req.Header.Set("Accept", "text/html")

	resp, err := httpClient.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}
	return Parse(io.LimitReader(resp.Body, maxBody), resp.Request.URL)
}

// Parse extracts the preview from an HTML document. base resolves relative
// image URLs and may be nil.
func Parse(r io.Reader, base *url.URL) (Preview, error) {
	var out Preview
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return out, err
	}

	out.Title = firstNonEmpty(
		meta(doc, "og:title"),
		meta(doc, "twitter:title"),
		doc.Find("title").First().Text(),
	)
	out.Description = firstNonEmpty(
		meta(doc, "og:description"),
		meta(doc, "twitter:description"),
		meta(doc, "description"),
	)
	image := firstNonEmpty(meta(doc, "og:image"), meta(doc, "twitter:image"))
	if image != "" {
		out.ImageURL = resolve(base, image)
	}
	return out, nil
}

func meta(doc *goquery.Document, name string) string {
	var value string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		if prop == "" {
			prop, _ = s.Attr("name")
		}
		if strings.EqualFold(prop, name) {
			value, _ = s.Attr("content")
			return false
		}
		return true
	})
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

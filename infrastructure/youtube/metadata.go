package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var shortDescription = regexp.MustCompile(`"shortDescription":"((?:[^"\\]|\\.)*)"`)

// Title returns the page title without the " - YouTube" suffix, or "" when
// the page cannot be fetched or has no title.
func (c *Client) Title(ctx context.Context, rawURL string) string {
	page, ok := c.metadataPage(ctx, rawURL, "title")
	if !ok {
		return ""
	}
	return pageTitle(page)
}

// Description returns the video description, or "" on any failure.
func (c *Client) Description(ctx context.Context, rawURL string) string {
	page, ok := c.metadataPage(ctx, rawURL, "description")
	if !ok {
		return ""
	}
	desc, found := pageDescription(page)
	if !found {
		c.logger.DebugContext(ctx, "no description on page", slog.String("url", rawURL))
	}
	return desc
}

func (c *Client) metadataPage(ctx context.Context, rawURL, field string) ([]byte, bool) {
	id, err := VideoID(rawURL)
	if err != nil {
		return nil, false
	}
	page, err := c.watchPage(ctx, id)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to fetch video "+field,
			slog.String("video_id", id),
			slog.Any("error", err),
		)
		return nil, false
	}
	return page, true
}

// pageTitle returns the text of the first <title> element.
func pageTitle(page []byte) string {
	z := html.NewTokenizer(bytes.NewReader(page))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inTitle = atom.Lookup(name) == atom.Title
		case html.EndTagToken:
			inTitle = false
		case html.TextToken:
			if inTitle {
				title := strings.TrimSpace(string(z.Text()))
				title, _, _ = strings.Cut(title, " - YouTube")
				return strings.TrimSpace(title)
			}
		}
	}
}

// pageDescription extracts shortDescription from the embedded player JSON.
func pageDescription(page []byte) (string, bool) {
	m := shortDescription.FindSubmatch(page)
	if m == nil {
		return "", false
	}
	var desc string
	if err := json.Unmarshal(append(append([]byte{'"'}, m[1]...), '"'), &desc); err != nil {
		return "", false
	}
	return desc, true
}

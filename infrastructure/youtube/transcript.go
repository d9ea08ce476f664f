package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/helixml/vidchat/domain/video"
	"golang.org/x/net/html"
)

var playlistEntry = regexp.MustCompile(`"playlistVideoRenderer":\{"videoId":"([A-Za-z0-9_-]+)"`)

// captionTrack is one entry of the player's captionTracks list.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// timedText is the XML caption document served by the track URL.
type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript returns the timestamped captions of a video. Manual English
// captions are preferred over generated ones, and English over other
// languages.
func (c *Client) Transcript(ctx context.Context, videoID string) ([]video.Segment, error) {
	page, err := c.watchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}
	tracks, err := captionTracks(page)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}
	track := pickTrack(tracks)

	doc, err := c.get(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	segments, err := parseTimedText(doc)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNoTranscript)
	}
	return segments, nil
}

// PlaylistVideos returns the watch URLs listed on a playlist page, in order.
func (c *Client) PlaylistVideos(ctx context.Context, playlistURL string) ([]string, error) {
	id, err := PlaylistID(playlistURL)
	if err != nil {
		return nil, err
	}
	page, err := c.get(ctx, c.baseURL+"/playlist?list="+id)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var urls []string
	for _, m := range playlistEntry.FindAllSubmatch(page, -1) {
		vid := string(m[1])
		if seen[vid] {
			continue
		}
		seen[vid] = true
		urls = append(urls, WatchURL(vid))
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("playlist %s: no videos found", id)
	}
	return urls, nil
}

// captionTracks decodes the JSON array following "captionTracks": in the
// watch page.
func captionTracks(page []byte) ([]captionTrack, error) {
	const marker = `"captionTracks":`
	i := bytes.Index(page, []byte(marker))
	if i < 0 {
		return nil, ErrNoTranscript
	}
	var tracks []captionTrack
	if err := json.NewDecoder(bytes.NewReader(page[i+len(marker):])).Decode(&tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	usable := tracks[:0]
	for _, t := range tracks {
		if t.BaseURL != "" {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoTranscript
	}
	return usable, nil
}

func pickTrack(tracks []captionTrack) captionTrack {
	rank := func(t captionTrack) int {
		english := strings.HasPrefix(t.LanguageCode, "en")
		manual := t.Kind != "asr"
		switch {
		case english && manual:
			return 0
		case english:
			return 1
		case manual:
			return 2
		}
		return 3
	}
	best := tracks[0]
	for _, t := range tracks[1:] {
		if rank(t) < rank(best) {
			best = t
		}
	}
	return best
}

// parseTimedText converts a timedtext XML document into segments. Caption
// text is HTML-escaped inside the XML, so it is unescaped twice.
func parseTimedText(doc []byte) ([]video.Segment, error) {
	var tt timedText
	if err := xml.Unmarshal(doc, &tt); err != nil {
		return nil, fmt.Errorf("parse captions: %w", err)
	}
	segments := make([]video.Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := strings.Join(strings.Fields(html.UnescapeString(line.Text)), " ")
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(line.Start, 64)
		dur, _ := strconv.ParseFloat(line.Dur, 64)
		segments = append(segments, video.Segment{Text: text, Start: start, Duration: dur})
	}
	return segments, nil
}

// Package playlist imports plain M3U lists as live-class catalog items, the
// credential-less entry path next to the panel login.
package playlist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iptvplus/iptv-plus/internal/catalog"
	"github.com/iptvplus/iptv-plus/internal/httpclient"
)

// ErrNoChannels is returned when a list parses but contains no channels.
var ErrNoChannels = errors.New("playlist: no channels found in this list")

const maxLineSize = 512 * 1024

// Import downloads and parses the M3U at url. client may be nil to use the
// shared default.
func Import(ctx context.Context, client *http.Client, url string) ([]catalog.ContentItem, error) {
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "IPTVPlus/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist: %s: %s", url, resp.Status)
	}
	return Parse(resp.Body)
}

// Parse reads an M3U stream line by line. Each #EXTINF line opens a channel;
// the next http(s) line closes it. Items get random "m3u-" ids since plain
// lists carry no stable upstream identifier.
func Parse(r io.Reader) ([]catalog.ContentItem, error) {
	var out []catalog.ContentItem
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)

	var pending *catalog.ContentItem
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			attrs := parseEXTINF(line)
			name := attrs["name"]
			if name == "" {
				name = attrs["tvg-name"]
			}
			if name == "" {
				name = "Sem Nome"
			}
			category := attrs["group-title"]
			if category == "" {
				category = "Geral"
			}
			pending = &catalog.ContentItem{
				Name:     name,
				LogoURL:  attrs["tvg-logo"],
				Category: category,
				Class:    catalog.ClassLive,
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if pending != nil && isHTTP(line) {
			pending.ID = "m3u-" + uuid.NewString()
			pending.StreamURL = line
			out = append(out, *pending)
			pending = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoChannels
	}
	return out, nil
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// parseEXTINF extracts the quoted key="value" attributes and the display
// name after the last comma.
func parseEXTINF(line string) map[string]string {
	m := make(map[string]string)
	line = strings.TrimPrefix(line, "#EXTINF:")
	if idx := strings.LastIndex(line, ","); idx >= 0 && idx+1 < len(line) {
		m["name"] = strings.TrimSpace(line[idx+1:])
		line = line[:idx]
	}
	for {
		line = strings.TrimSpace(line)
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			break
		}
		before := strings.TrimSpace(line[:eq])
		key := before
		if idx := strings.LastIndex(before, " "); idx >= 0 {
			key = strings.TrimSpace(before[idx+1:])
		}
		line = strings.TrimSpace(line[eq+1:])
		if len(line) < 2 || line[0] != '"' {
			break
		}
		line = line[1:]
		end := strings.IndexByte(line, '"')
		if end < 0 {
			break
		}
		m[key] = line[:end]
		line = line[end+1:]
	}
	return m
}

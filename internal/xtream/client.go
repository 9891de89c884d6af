// Package xtream speaks the credential-based panel query protocol
// (player_api.php). Stateless request/response only: transport resilience
// lives in internal/fetch, caching in internal/catalog.
package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/iptvplus/iptv-plus/internal/catalog"
)

// AuthErrorKind distinguishes "the panel said no" from "no panel answered".
type AuthErrorKind string

const (
	InvalidCredentials AuthErrorKind = "invalid_credentials"
	Unreachable        AuthErrorKind = "unreachable"
)

// AuthError is a terminal authentication failure with an actionable message.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case InvalidCredentials:
		return "Usuário ou senha inválidos no servidor informado."
	default:
		return "O servidor IPTV não respondeu ou bloqueou a conexão externa."
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// actions per content class listing.
var classActions = map[catalog.Class]string{
	catalog.ClassLive:   "get_live_streams",
	catalog.ClassMovie:  "get_vod_streams",
	catalog.ClassSeries: "get_series",
}

// Getter resolves a URL to a JSON payload. *fetch.Fetcher satisfies it.
type Getter interface {
	JSON(ctx context.Context, target string) (json.RawMessage, error)
}

// Client issues panel queries through a resilient Getter.
type Client struct {
	getter Getter
	log    *logrus.Entry
}

// New returns a panel client.
func New(getter Getter, log *logrus.Logger) *Client {
	return &Client{getter: getter, log: log.WithField("component", "xtream")}
}

var _ catalog.PanelClient = (*Client)(nil)

// apiURL builds the base authenticated query; extra is appended verbatim.
func apiURL(cred catalog.Credential, extra string) string {
	return cred.BaseURL() + "/player_api.php?username=" + url.QueryEscape(cred.Username) +
		"&password=" + url.QueryEscape(cred.Password) + extra
}

// Authenticate issues the base query and inspects user_info. A payload with
// user_info.auth == 0 (or no user_info at all) is an explicit rejection;
// transport exhaustion maps to Unreachable.
func (c *Client) Authenticate(ctx context.Context, cred catalog.Credential) error {
	raw, err := c.getter.JSON(ctx, apiURL(cred, ""))
	if err != nil {
		return &AuthError{Kind: Unreachable, Err: err}
	}
	var payload struct {
		UserInfo map[string]any `json:"user_info"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserInfo == nil {
		return &AuthError{Kind: InvalidCredentials, Err: err}
	}
	if rejected(payload.UserInfo["auth"]) {
		return &AuthError{Kind: InvalidCredentials}
	}
	c.log.WithField("user", cred.Username).Debug("panel accepted credentials")
	return nil
}

// rejected reports whether the panel's auth marker denies access. Panels send
// auth as 0/1, "0"/"1" or a bool depending on the implementation.
func rejected(v any) bool {
	switch x := v.(type) {
	case float64:
		return x == 0
	case bool:
		return !x
	case string:
		return x == "0" || x == "false"
	}
	return false
}

// FetchClass issues the listing query for class. A non-array or missing
// payload yields an empty slice, not an error: absent content is not a
// fault, the panel just has nothing in that class.
func (c *Client) FetchClass(ctx context.Context, cred catalog.Credential, class catalog.Class) ([]catalog.RawRecord, error) {
	action, ok := classActions[class]
	if !ok {
		return nil, fmt.Errorf("xtream: unknown class %q", class)
	}
	raw, err := c.getter.JSON(ctx, apiURL(cred, "&action="+action))
	if err != nil {
		return nil, err
	}
	var records []catalog.RawRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		c.log.WithField("class", class).Debug("non-array listing payload, treating as empty")
		return nil, nil
	}
	return records, nil
}

// FetchSeriesDetail issues the per-series detail query and returns seasons in
// ascending numeric order. No episode data yields an empty slice.
func (c *Client) FetchSeriesDetail(ctx context.Context, cred catalog.Credential, seriesID string) ([]catalog.Season, error) {
	raw, err := c.getter.JSON(ctx, apiURL(cred, "&action=get_series_info&series_id="+url.QueryEscape(seriesID)))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Episodes json.RawMessage `json:"episodes"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Episodes) == 0 {
		return nil, nil
	}

	// Most panels key episodes by season number; a few send one flat array
	// with a per-episode "season" field. Accept both.
	var byKey map[string][]catalog.RawRecord
	if err := json.Unmarshal(payload.Episodes, &byKey); err != nil {
		var flat []catalog.RawRecord
		if err := json.Unmarshal(payload.Episodes, &flat); err != nil {
			return nil, nil
		}
		byKey = make(map[string][]catalog.RawRecord)
		for _, ep := range flat {
			k := strconv.Itoa(ep.Int("season"))
			byKey[k] = append(byKey[k], ep)
		}
	}
	return groupSeasons(byKey), nil
}

// groupSeasons builds the ordered season list from the panel's
// season-number → episodes map. Season keys are strings ("1", "2", and
// sometimes "0" for specials, kept as-is).
func groupSeasons(byKey map[string][]catalog.RawRecord) []catalog.Season {
	seasons := make([]catalog.Season, 0, len(byKey))
	for seasonKey, eps := range byKey {
		number, err := strconv.Atoi(seasonKey)
		if err != nil || number < 0 {
			continue
		}
		season := catalog.Season{
			Name:   "Temporada " + seasonKey,
			Number: number,
		}
		for _, ep := range eps {
			id := ep.Str("id")
			if id == "" {
				continue
			}
			epNumber := ep.Int("episode_num")
			seasonNumber := ep.Int("season")
			if seasonNumber == 0 {
				seasonNumber = number
			}
			season.Episodes = append(season.Episodes, catalog.Episode{
				ID:                 id,
				Title:              ep.Str("title"),
				ContainerExtension: ep.Str("container_extension"),
				SeasonNumber:       seasonNumber,
				EpisodeNumber:      epNumber,
			})
		}
		if len(season.Episodes) == 0 {
			continue
		}
		sort.Slice(season.Episodes, func(i, j int) bool {
			return season.Episodes[i].EpisodeNumber < season.Episodes[j].EpisodeNumber
		})
		seasons = append(seasons, season)
	}
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].Number < seasons[j].Number })
	return seasons
}

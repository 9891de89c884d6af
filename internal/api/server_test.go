package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iptvplus/iptv-plus/internal/catalog"
	"github.com/iptvplus/iptv-plus/internal/config"
	"github.com/iptvplus/iptv-plus/internal/playback"
	"github.com/iptvplus/iptv-plus/internal/xtream"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// fakePanel serves a small fixed catalog for any credential except user
// "errado", which is rejected.
type fakePanel struct{}

func (fakePanel) Authenticate(_ context.Context, cred catalog.Credential) error {
	if cred.Username == "errado" {
		return &xtream.AuthError{Kind: xtream.InvalidCredentials}
	}
	return nil
}

func (fakePanel) FetchClass(_ context.Context, _ catalog.Credential, class catalog.Class) ([]catalog.RawRecord, error) {
	switch class {
	case catalog.ClassLive:
		return []catalog.RawRecord{
			{"stream_id": "1", "name": "Globo"},
			{"stream_id": "2", "name": "ESPN"},
		}, nil
	case catalog.ClassSeries:
		return []catalog.RawRecord{{"series_id": "7", "name": "Drama"}}, nil
	}
	return nil, nil
}

type fakeDetail struct{}

func (fakeDetail) FetchSeriesDetail(_ context.Context, _ catalog.Credential, _ string) ([]catalog.Season, error) {
	return []catalog.Season{
		{Name: "Temporada 1", Number: 1, Episodes: []catalog.Episode{{ID: "50"}}},
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := testLogger()
	cache := catalog.NewCache()
	loader := catalog.NewLoader(fakePanel{}, catalog.NewNormalizer(log), cache, log)
	sessions := playback.NewManager(fakeDetail{}, log)
	cfg := config.Config{CatalogTimeout: 5 * time.Second, InteractiveTimeout: 5 * time.Second}
	srv := httptest.NewServer(New(cfg, loader, cache, sessions, nil, log).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func login(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := post(t, srv, "/api/login", catalog.Credential{
		OriginURL: "http://panel", Username: "a", Password: "b",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogin_andCatalog(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/login", catalog.Credential{
		OriginURL: "http://panel", Username: "a", Password: "b",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var loaded loadResponse
	decode(t, resp, &loaded)
	if loaded.Counts[catalog.ClassLive] != 2 || loaded.Counts[catalog.ClassSeries] != 1 {
		t.Errorf("counts = %v", loaded.Counts)
	}

	var items []catalog.ContentItem
	get, err := srv.Client().Get(srv.URL + "/api/catalog?view=live")
	if err != nil {
		t.Fatalf("GET catalog: %v", err)
	}
	decode(t, get, &items)
	if len(items) != 2 || items[0].ID != "live-1" {
		t.Errorf("items = %+v", items)
	}
}

func TestLogin_validation(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "/api/login", catalog.Credential{OriginURL: "http://panel"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing fields status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post(t, srv, "/api/login", catalog.Credential{
		OriginURL: "http://panel", Username: "errado", Password: "b",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("rejected login status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogout_clearsCatalog(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)

	resp := post(t, srv, "/api/logout", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	var items []catalog.ContentItem
	get, err := srv.Client().Get(srv.URL + "/api/catalog")
	if err != nil {
		t.Fatalf("GET catalog: %v", err)
	}
	decode(t, get, &items)
	if len(items) != 0 {
		t.Errorf("items after logout = %+v", items)
	}
}

func TestToggleFavorite(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)

	resp := post(t, srv, "/api/catalog/live-2/favorite", map[string]string{})
	var body map[string]bool
	decode(t, resp, &body)
	if !body["isFavorite"] {
		t.Errorf("body = %v, want isFavorite true", body)
	}

	var items []catalog.ContentItem
	get, err := srv.Client().Get(srv.URL + "/api/catalog?view=favorites")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	decode(t, get, &items)
	if len(items) != 1 || items[0].ID != "live-2" {
		t.Errorf("favorites = %+v", items)
	}

	resp = post(t, srv, "/api/catalog/live-404/favorite", map[string]string{})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPlaylistImport(t *testing.T) {
	srv := newTestServer(t)

	m3uSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXTINF:-1,Canal M3U\nhttp://stream.example/c.m3u8\n"))
	}))
	defer m3uSrv.Close()

	resp := post(t, srv, "/api/playlist/import", map[string]string{"url": m3uSrv.URL})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}
	var body map[string]int
	decode(t, resp, &body)
	if body["imported"] != 1 {
		t.Errorf("imported = %d", body["imported"])
	}

	// Imported channels show up in the catalog without any login.
	var items []catalog.ContentItem
	get, err := srv.Client().Get(srv.URL + "/api/catalog")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	decode(t, get, &items)
	if len(items) != 1 || items[0].Name != "Canal M3U" {
		t.Errorf("items = %+v", items)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)

	var st playback.Status
	decode(t, post(t, srv, "/api/session/select", map[string]string{"id": "live-1"}), &st)
	if st.State != playback.StateResolving {
		t.Fatalf("state = %s, want resolving", st.State)
	}

	decode(t, post(t, srv, "/api/session/ready", map[string]string{}), &st)
	if st.State != playback.StatePlaying {
		t.Fatalf("state = %s, want playing", st.State)
	}

	decode(t, post(t, srv, "/api/session/pause", map[string]string{}), &st)
	if st.State != playback.StatePaused {
		t.Fatalf("state = %s, want paused", st.State)
	}

	decode(t, post(t, srv, "/api/session/resume", map[string]string{}), &st)
	if st.State != playback.StatePlaying {
		t.Fatalf("state = %s, want playing", st.State)
	}

	// Next over the live view steps to the second channel.
	decode(t, post(t, srv, "/api/session/next", Filter{View: "live"}), &st)
	if st.Item == nil || st.Item.ID != "live-2" {
		t.Fatalf("item = %+v, want live-2", st.Item)
	}

	decode(t, post(t, srv, "/api/session/close", map[string]string{}), &st)
	if st.State != playback.StateIdle {
		t.Fatalf("state = %s, want idle", st.State)
	}
}

func TestSessionSeriesFlow(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)

	var st playback.Status
	decode(t, post(t, srv, "/api/session/select", map[string]string{"id": "series-7"}), &st)
	if st.State != playback.StateAwaitingEpisode {
		t.Fatalf("state = %s, want awaiting_episode", st.State)
	}
	if len(st.Seasons) != 1 {
		t.Fatalf("seasons = %+v", st.Seasons)
	}

	decode(t, post(t, srv, "/api/session/episode", st.Seasons[0].Episodes[0]), &st)
	if st.State != playback.StateResolving {
		t.Fatalf("state = %s, want resolving", st.State)
	}
	if st.StreamURL != "http://panel/series/a/b/50.mp4" {
		t.Errorf("url = %s", st.StreamURL)
	}
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)

	// No session yet: transitions conflict.
	resp := post(t, srv, "/api/session/ready", map[string]string{})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("ready without session = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post(t, srv, "/api/session/select", map[string]string{"id": "live-404"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown item = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	// A decoder fault is reported inside the snapshot, not as an HTTP error.
	var st playback.Status
	decode(t, post(t, srv, "/api/session/select", map[string]string{"id": "live-1"}), &st)
	decode(t, post(t, srv, "/api/session/fault", map[string]string{"kind": "decode_incompatible"}), &st)
	if st.State != playback.StateFailed || st.Fault != string(playback.DecodeIncompatible) {
		t.Errorf("status = %+v", st)
	}

	decode(t, post(t, srv, "/api/session/retry", map[string]string{}), &st)
	if st.State != playback.StateResolving {
		t.Errorf("state after retry = %s, want resolving", st.State)
	}
}

func TestAutoplayToggle(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv)

	var st playback.Status
	decode(t, post(t, srv, "/api/session/autoplay", map[string]bool{"enabled": false}), &st)
	if st.Autoplay {
		t.Error("autoplay still on")
	}

	decode(t, post(t, srv, "/api/session/select", map[string]string{"id": "live-2"}), &st)
	post(t, srv, "/api/session/ready", map[string]string{}).Body.Close()
	decode(t, post(t, srv, "/api/session/ended", Filter{View: "live"}), &st)
	if st.State != playback.StateIdle {
		t.Errorf("state = %s, want idle with autoplay off", st.State)
	}
}

func TestConcurrentCatalogReadsAndFavoriteWrites(t *testing.T) {
	srv := newTestServer(t)

	m3uSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXTINF:-1,Canal M3U\nhttp://stream.example/c.m3u8\n"))
	}))
	defer m3uSrv.Close()
	post(t, srv, "/api/playlist/import", map[string]string{"url": m3uSrv.URL}).Body.Close()

	var items []catalog.ContentItem
	get, err := srv.Client().Get(srv.URL + "/api/catalog")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	decode(t, get, &items)
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	id := items[0].ID

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				resp, err := srv.Client().Get(srv.URL + "/api/catalog")
				if err != nil {
					t.Errorf("GET: %v", err)
					return
				}
				resp.Body.Close()
				resp, err = srv.Client().Post(srv.URL+"/api/catalog/"+id+"/favorite", "application/json", nil)
				if err != nil {
					t.Errorf("POST: %v", err)
					return
				}
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

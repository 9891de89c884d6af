// Package playback owns the singleton playback session: resolving a selected
// catalog item to a concrete stream address (with the series → season →
// episode indirection), the play/pause/error/retry lifecycle, and
// autoplay-next sequencing over the caller's filtered item list. The actual
// decoding is external; the decoder reports readiness and faults back in.
package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iptvplus/iptv-plus/internal/catalog"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateResolving       State = "resolving"
	StateAwaitingEpisode State = "awaiting_episode"
	StatePlaying         State = "playing"
	StatePaused          State = "paused"
	StateFailed          State = "failed"
)

// FaultKind classifies a playback fault. Faults are recoverable locally via
// Retry; they never force re-authentication or a catalog reload.
type FaultKind string

const (
	StreamUnavailable       FaultKind = "stream_unavailable"
	DecodeIncompatible      FaultKind = "decode_incompatible"
	SeriesDetailUnavailable FaultKind = "series_detail_unavailable"
)

// Error carries the fault class plus the message shown to the user.
type Error struct {
	Kind FaultKind
}

func (e *Error) Error() string {
	switch e.Kind {
	case DecodeIncompatible:
		return "O formato do stream é incompatível com o reprodutor."
	case SeriesDetailUnavailable:
		return "Não foi possível carregar as temporadas."
	default:
		return "O servidor não respondeu. Tente novamente."
	}
}

// ErrNoSession is returned by operations that require an active session.
var ErrNoSession = errors.New("playback: no active session")

// ErrBadTransition is returned when an operation is not valid in the current
// state.
var ErrBadTransition = errors.New("playback: operation not valid in current state")

// DetailFetcher loads series seasons lazily. *xtream.Client satisfies it.
type DetailFetcher interface {
	FetchSeriesDetail(ctx context.Context, cred catalog.Credential, seriesID string) ([]catalog.Season, error)
}

// Status is a read-only snapshot of the session for the UI layer.
type Status struct {
	State     State                `json:"state"`
	Item      *catalog.ContentItem `json:"item,omitempty"`
	Episode   *catalog.Episode     `json:"episode,omitempty"`
	Seasons   []catalog.Season     `json:"seasons,omitempty"`
	StreamURL string               `json:"url,omitempty"`
	Fault     string               `json:"fault,omitempty"`
	Message   string               `json:"message,omitempty"`
	Autoplay  bool                 `json:"autoplay"`
}

type session struct {
	item      catalog.ContentItem
	cred      catalog.Credential
	seasons   []catalog.Season
	episode   *catalog.Episode
	streamURL string
	state     State
	fault     *Error
	cancel    context.CancelFunc // in-flight series detail fetch
}

// Manager holds the one active session. Selecting a new item tears the prior
// session down (cancelling any pending detail fetch) before building the
// next one.
type Manager struct {
	mu       sync.Mutex
	detail   DetailFetcher
	log      *logrus.Entry
	autoplay bool
	gen      int // invalidates a detail fetch that outlives its session
	sess     *session
}

// NewManager returns a Manager with autoplay-next enabled.
func NewManager(detail DetailFetcher, log *logrus.Logger) *Manager {
	return &Manager{
		detail:   detail,
		log:      log.WithField("component", "playback"),
		autoplay: true,
	}
}

// SetAutoplay toggles autoplay-next.
func (m *Manager) SetAutoplay(on bool) {
	m.mu.Lock()
	m.autoplay = on
	m.mu.Unlock()
}

// Select closes any active session and starts resolving item. Live and movie
// items use their existing stream URL and wait for the decoder to signal
// ready; series items trigger a detail fetch and then wait for an explicit
// episode pick; series playback never auto-starts.
func (m *Manager) Select(ctx context.Context, cred catalog.Credential, item catalog.ContentItem) (Status, error) {
	m.mu.Lock()
	m.closeLocked()
	m.gen++
	gen := m.gen
	sess := &session{item: item, cred: cred, state: StateResolving}
	m.sess = sess

	if item.Class != catalog.ClassSeries {
		if item.StreamURL == "" {
			sess.state = StateFailed
			sess.fault = &Error{Kind: StreamUnavailable}
			m.mu.Unlock()
			return m.Status(), sess.fault
		}
		sess.streamURL = item.StreamURL
		m.mu.Unlock()
		m.log.WithField("item", item.ID).Debug("resolving stream")
		return m.Status(), nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	m.mu.Unlock()

	seasons, err := m.detail.FetchSeriesDetail(fetchCtx, cred, item.SourceID())
	cancel()

	m.mu.Lock()
	if m.gen != gen || m.sess != sess {
		// Session was closed or replaced while the fetch was in flight.
		m.mu.Unlock()
		return m.Status(), nil
	}
	sess.cancel = nil
	if err != nil {
		sess.state = StateFailed
		sess.fault = &Error{Kind: SeriesDetailUnavailable}
		m.mu.Unlock()
		m.log.WithField("item", item.ID).Warnf("series detail fetch failed: %v", err)
		return m.Status(), sess.fault
	}
	sess.seasons = seasons
	sess.state = StateAwaitingEpisode
	m.mu.Unlock()
	return m.Status(), nil
}

// ChooseEpisode resolves ep to its stream address and re-enters Resolving.
// Valid once the episode list is known (awaiting choice, or switching
// episodes while playing/paused/failed).
func (m *Manager) ChooseEpisode(ep catalog.Episode) (Status, error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return m.Status(), ErrNoSession
	}
	if sess.item.Class != catalog.ClassSeries || sess.state == StateResolving {
		m.mu.Unlock()
		return m.Status(), ErrBadTransition
	}
	sess.episode = &ep
	sess.streamURL = catalog.EpisodeStreamURL(sess.cred, ep)
	sess.state = StateResolving
	sess.fault = nil
	m.mu.Unlock()
	return m.Status(), nil
}

// DecoderReady fires the Resolving → Playing edge once the external decoder
// reports the stream is up.
func (m *Manager) DecoderReady() (Status, error) {
	return m.transition(StateResolving, StatePlaying)
}

// Pause moves Playing → Paused.
func (m *Manager) Pause() (Status, error) {
	return m.transition(StatePlaying, StatePaused)
}

// Resume moves Paused → Playing.
func (m *Manager) Resume() (Status, error) {
	return m.transition(StatePaused, StatePlaying)
}

func (m *Manager) transition(from, to State) (Status, error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return m.Status(), ErrNoSession
	}
	if sess.state != from {
		m.mu.Unlock()
		return m.Status(), ErrBadTransition
	}
	sess.state = to
	m.mu.Unlock()
	return m.Status(), nil
}

// Fault moves the session to Failed with the given classification. Called by
// the boundary when the decoder reports a stream or format error.
func (m *Manager) Fault(kind FaultKind) (Status, error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return m.Status(), ErrNoSession
	}
	sess.state = StateFailed
	sess.fault = &Error{Kind: kind}
	m.mu.Unlock()
	return m.Status(), nil
}

// Retry re-attempts after a fault. With a resolved URL it re-enters Resolving
// on the same address, with no series detail re-fetch. When the fault was the
// detail fetch itself there is no URL to retry, so the fetch is re-run.
func (m *Manager) Retry(ctx context.Context) (Status, error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return m.Status(), ErrNoSession
	}
	if sess.state != StateFailed {
		m.mu.Unlock()
		return m.Status(), ErrBadTransition
	}
	if sess.streamURL != "" {
		sess.state = StateResolving
		sess.fault = nil
		m.mu.Unlock()
		return m.Status(), nil
	}
	item, cred := sess.item, sess.cred
	m.mu.Unlock()
	return m.Select(ctx, cred, item)
}

// StreamEnded handles the end-of-stream signal. With autoplay on, the next
// item from the caller's ordered filtered snapshot is selected; at the end of
// the list (or with autoplay off) playback simply stops: the session returns
// to Idle but does not close.
func (m *Manager) StreamEnded(ctx context.Context, list []catalog.ContentItem) (Status, error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return m.Status(), ErrNoSession
	}
	autoplay := m.autoplay
	active := sess.item
	cred := sess.cred
	if !autoplay {
		sess.state = StateIdle
		m.mu.Unlock()
		return m.Status(), nil
	}
	next, ok := neighbour(list, active.ID, +1)
	if !ok {
		sess.state = StateIdle
		m.mu.Unlock()
		return m.Status(), nil
	}
	m.mu.Unlock()
	return m.Select(ctx, cred, next)
}

// Next selects the item after the active one in the caller's snapshot.
// Stepping past the end is a no-op.
func (m *Manager) Next(ctx context.Context, list []catalog.ContentItem) (Status, error) {
	return m.step(ctx, list, +1)
}

// Previous selects the item before the active one. Stepping past the start
// is a no-op.
func (m *Manager) Previous(ctx context.Context, list []catalog.ContentItem) (Status, error) {
	return m.step(ctx, list, -1)
}

func (m *Manager) step(ctx context.Context, list []catalog.ContentItem, delta int) (Status, error) {
	m.mu.Lock()
	sess := m.sess
	if sess == nil {
		m.mu.Unlock()
		return m.Status(), ErrNoSession
	}
	active := sess.item
	cred := sess.cred
	m.mu.Unlock()
	target, ok := neighbour(list, active.ID, delta)
	if !ok {
		return m.Status(), nil
	}
	return m.Select(ctx, cred, target)
}

// neighbour locates id in list and steps delta positions; no wraparound.
func neighbour(list []catalog.ContentItem, id string, delta int) (catalog.ContentItem, bool) {
	for i, item := range list {
		if item.ID == id {
			j := i + delta
			if j < 0 || j >= len(list) {
				return catalog.ContentItem{}, false
			}
			return list[j], true
		}
	}
	return catalog.ContentItem{}, false
}

// Close destroys the session: cancels any in-flight detail fetch and returns
// to Idle with no item.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closeLocked()
	m.gen++
	m.mu.Unlock()
}

func (m *Manager) closeLocked() {
	if m.sess != nil && m.sess.cancel != nil {
		m.sess.cancel()
	}
	m.sess = nil
}

// Status returns a snapshot for the UI layer.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{State: StateIdle, Autoplay: m.autoplay}
	if m.sess == nil {
		return st
	}
	sess := m.sess
	item := sess.item
	st.State = sess.state
	st.Item = &item
	st.Episode = sess.episode
	st.Seasons = sess.seasons
	st.StreamURL = sess.streamURL
	if sess.fault != nil {
		st.Fault = string(sess.fault.Kind)
		st.Message = sess.fault.Error()
	}
	return st
}

package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrEmptyCatalog is returned when the account authenticated but all three
// classes came back empty. A validated login with nothing to show is terminal
// for the acquisition flow.
var ErrEmptyCatalog = errors.New("A conta foi validada, mas a lista de conteúdos retornou vazia.")

// PanelClient is the slice of the panel protocol the loader needs.
// *xtream.Client satisfies it.
type PanelClient interface {
	Authenticate(ctx context.Context, cred Credential) error
	FetchClass(ctx context.Context, cred Credential, class Class) ([]RawRecord, error)
}

// Result is the outcome of one catalog load. ClassErrors records classes
// whose fetch failed; those classes are present in the cache as empty, not
// missing, so the UI shows "no series" rather than an error while callers
// can still report the degradation.
type Result struct {
	Counts      map[Class]int
	ClassErrors map[Class]error
}

// Total returns the number of items across all classes.
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Loader authenticates, fetches the three classes concurrently with
// all-settled join semantics, normalizes, and populates the cache.
type Loader struct {
	client PanelClient
	norm   *Normalizer
	cache  *Cache
	log    *logrus.Entry

	mu sync.Mutex // serialises Load/Refresh so clear+refetch is one logical op
}

// NewLoader wires a loader. All collaborators are required.
func NewLoader(client PanelClient, norm *Normalizer, cache *Cache, log *logrus.Logger) *Loader {
	return &Loader{
		client: client,
		norm:   norm,
		cache:  cache,
		log:    log.WithField("component", "loader"),
	}
}

// Load authenticates cred and fills the cache for every class. A failing
// class yields an empty cached class plus an entry in Result.ClassErrors; it
// never aborts the siblings. Only authentication failure or total emptiness
// is an error.
func (l *Loader) Load(ctx context.Context, cred Credential) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, cred)
}

// Refresh clears the whole cache, then reloads. Clear-then-refetch runs under
// the same lock, so readers never observe stale and fresh entries merged.
func (l *Loader) Refresh(ctx context.Context, cred Credential) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Clear()
	return l.load(ctx, cred)
}

func (l *Loader) load(ctx context.Context, cred Credential) (*Result, error) {
	if err := l.client.Authenticate(ctx, cred); err != nil {
		return nil, err
	}

	type classOut struct {
		items []ContentItem
		err   error
	}
	outs := make(map[Class]*classOut, len(Classes))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, class := range Classes {
		wg.Add(1)
		go func(class Class) {
			defer wg.Done()
			out := &classOut{}
			records, err := l.client.FetchClass(ctx, cred, class)
			if err == nil {
				out.items, err = l.norm.Normalize(ctx, records, class, cred)
			}
			out.err = err
			mu.Lock()
			outs[class] = out
			mu.Unlock()
		}(class)
	}
	wg.Wait()

	res := &Result{Counts: make(map[Class]int), ClassErrors: make(map[Class]error)}
	for _, class := range Classes {
		out := outs[class]
		if out.err != nil {
			l.log.WithFields(logrus.Fields{"class": class}).
				Warnf("class fetch failed, serving empty: %v", out.err)
			res.ClassErrors[class] = out.err
			l.cache.Put(cred, class, nil)
			continue
		}
		res.Counts[class] = len(out.items)
		l.cache.Put(cred, class, out.items)
	}

	if res.Total() == 0 {
		return nil, ErrEmptyCatalog
	}
	l.log.WithFields(logrus.Fields{
		"live":   res.Counts[ClassLive],
		"movies": res.Counts[ClassMovie],
		"series": res.Counts[ClassSeries],
	}).Info("catalog loaded")
	return res, nil
}

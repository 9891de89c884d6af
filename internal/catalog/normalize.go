package catalog

import (
	"context"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/iptvplus/iptv-plus/internal/metrics"
)

// DefaultChunkSize is the record count above which normalization starts
// yielding between chunks. Panels routinely return 100k+ entries; chunking
// keeps one huge class from starving everything else on the scheduler.
const DefaultChunkSize = 2000

// Class-appropriate defaults, matching what the upstream panel UI culture
// expects (pt-BR panels dominate this protocol).
var (
	defaultCategory = map[Class]string{
		ClassLive:   "Canais Ao Vivo",
		ClassMovie:  "Filmes",
		ClassSeries: "Séries",
	}
	defaultName = map[Class]string{
		ClassLive:   "Canal Sem Nome",
		ClassMovie:  "Filme",
		ClassSeries: "Série",
	}
	defaultDescription = map[Class]string{
		ClassLive:   "Qualidade: HD/FHD",
		ClassMovie:  "VOD Premium",
		ClassSeries: "Série Completa",
	}
)

// Normalizer converts raw panel records into ContentItems. Pure given its
// inputs: the same records always produce the same items in the same order,
// regardless of chunk size.
type Normalizer struct {
	ChunkSize int
	log       *logrus.Entry
}

// NewNormalizer returns a Normalizer with the default chunk size.
func NewNormalizer(log *logrus.Logger) *Normalizer {
	return &Normalizer{
		ChunkSize: DefaultChunkSize,
		log:       log.WithField("component", "normalize"),
	}
}

// Normalize maps records of one class into ContentItems. Records without an
// identifying field are dropped silently; malformed upstream entries are
// expected and non-fatal. Between chunks the goroutine yields so large
// catalogs never block interactive work; order is preserved.
func (n *Normalizer) Normalize(ctx context.Context, records []RawRecord, class Class, cred Credential) ([]ContentItem, error) {
	chunk := n.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	out := make([]ContentItem, 0, len(records))
	dropped := 0
	for start := 0; start < len(records); start += chunk {
		if start > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
				runtime.Gosched()
			}
		}
		end := start + chunk
		if end > len(records) {
			end = len(records)
		}
		for _, rec := range records[start:end] {
			item, ok := normalizeOne(rec, class, cred)
			if !ok {
				dropped++
				continue
			}
			out = append(out, item)
		}
	}

	if dropped > 0 {
		metrics.NormalizeDropped.WithLabelValues(string(class)).Add(float64(dropped))
		n.log.WithFields(logrus.Fields{"class": class, "dropped": dropped}).
			Debug("dropped records without identifier")
	}
	return out, nil
}

func normalizeOne(rec RawRecord, class Class, cred Credential) (ContentItem, bool) {
	idKey := "stream_id"
	if class == ClassSeries {
		idKey = "series_id"
	}
	sid := rec.Str(idKey)
	if sid == "" {
		return ContentItem{}, false
	}

	name := rec.Str("name")
	if name == "" {
		name = defaultName[class]
	}
	category := rec.Str("category_name")
	if category == "" {
		category = defaultCategory[class]
	}
	logo := rec.FirstStr("stream_icon")
	if class == ClassSeries {
		logo = rec.FirstStr("cover", "stream_icon")
	}

	item := ContentItem{
		ID:          string(class) + "-" + sid,
		Name:        name,
		LogoURL:     logo,
		Category:    category,
		Class:       class,
		Description: defaultDescription[class],
	}

	switch class {
	case ClassLive:
		item.StreamURL = LiveStreamURL(cred, sid)
	case ClassMovie:
		ext := rec.Str("container_extension")
		if ext == "" {
			ext = "mp4"
		}
		item.StreamURL = MovieStreamURL(cred, sid, ext)
	case ClassSeries:
		// Resolved per episode, never stored on the item.
	}
	return item, true
}

// Stream URL templates. Byte-stable given their inputs: the decoder receives
// these verbatim.

// LiveStreamURL builds <base>/live/<user>/<pass>/<id>.m3u8.
func LiveStreamURL(cred Credential, streamID string) string {
	return cred.BaseURL() + "/live/" + cred.Username + "/" + cred.Password + "/" + streamID + ".m3u8"
}

// MovieStreamURL builds <base>/movie/<user>/<pass>/<id>.<ext>.
func MovieStreamURL(cred Credential, streamID, ext string) string {
	return cred.BaseURL() + "/movie/" + cred.Username + "/" + cred.Password + "/" + streamID + "." + ext
}

// EpisodeStreamURL builds <base>/series/<user>/<pass>/<episodeID>.<ext>.
func EpisodeStreamURL(cred Credential, ep Episode) string {
	return cred.BaseURL() + "/series/" + cred.Username + "/" + cred.Password + "/" + ep.ID + "." + ep.Extension()
}

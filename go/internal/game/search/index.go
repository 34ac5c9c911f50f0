// Package search provides the track catalog lookup used while guessing.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mcdev12/musiguessr/go/clients/musiguessr_client"
	"github.com/mcdev12/musiguessr/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var ErrCatalogNotLoaded = errors.New("search: catalog not loaded")

// CatalogSource fetches the full searchable catalog.
type CatalogSource interface {
	ListMusics(ctx context.Context) ([]musiguessr_client.Music, error)
}

type entry struct {
	track  models.Track
	name   string
	artist string
}

// Index holds the catalog, fetched once and shared by every widget.
type Index struct {
	source CatalogSource
	group  singleflight.Group

	mu      sync.RWMutex
	entries []entry
	byID    map[int64]models.Track
	loaded  bool
}

func NewIndex(source CatalogSource) *Index {
	return &Index{source: source}
}

// Load fetches the catalog unless it is already loaded. Concurrent callers
// share one fetch; a failed fetch may be retried.
func (i *Index) Load(ctx context.Context) error {
	if i.Loaded() {
		return nil
	}

	_, err, shared := i.group.Do("catalog", func() (interface{}, error) {
		if i.Loaded() {
			return nil, nil
		}
		musics, err := i.source.ListMusics(ctx)
		if err != nil {
			return nil, err
		}
		i.replace(musics)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	log.Debug().Bool("shared", shared).Int("tracks", i.Len()).Msg("catalog ready")
	return nil
}

func (i *Index) replace(musics []musiguessr_client.Music) {
	entries := make([]entry, 0, len(musics))
	byID := make(map[int64]models.Track, len(musics))
	for _, m := range musics {
		track := TrackFromMusic(m)
		entries = append(entries, entry{
			track:  track,
			name:   strings.ToLower(track.Name),
			artist: strings.ToLower(track.ArtistName),
		})
		byID[track.ID] = track
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = entries
	i.byID = byID
	i.loaded = true
}

func (i *Index) Loaded() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.loaded
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Lookup returns a catalog entry by id.
func (i *Index) Lookup(id int64) (models.Track, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	track, ok := i.byID[id]
	return track, ok
}

// Filter returns up to limit tracks whose title or artist contains query,
// ignoring case. A blank query matches nothing.
func (i *Index) Filter(query string, limit int) ([]models.Track, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if !i.loaded {
		return nil, ErrCatalogNotLoaded
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	var results []models.Track
	for _, e := range i.entries {
		if strings.Contains(e.name, needle) || strings.Contains(e.artist, needle) {
			results = append(results, e.track)
			if len(results) == limit {
				break
			}
		}
	}
	return results, nil
}

// TrackFromMusic converts a backend music record to a displayable track.
func TrackFromMusic(m musiguessr_client.Music) models.Track {
	return models.Track{
		ID:         m.ID,
		Name:       m.Name,
		ArtistName: m.Artist.Name,
		GenreName:  m.Genre.Name,
	}
}

package search

import (
	"fmt"
	"sync"

	"github.com/mcdev12/musiguessr/go/internal/models"
)

const DefaultLimit = 10

// SelectFunc receives the track the player picked.
type SelectFunc func(track models.Track)

// Widget is one player's search box over a shared Index.
type Widget struct {
	index    *Index
	limit    int
	onSelect SelectFunc

	mu         sync.Mutex
	query      string
	results    []models.Track
	resetToken int
}

func NewWidget(index *Index, limit int, onSelect SelectFunc) *Widget {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Widget{
		index:    index,
		limit:    limit,
		onSelect: onSelect,
	}
}

// Search updates the visible query and returns the capped matches.
func (w *Widget) Search(query string) ([]models.Track, error) {
	results, err := w.index.Filter(query, w.limit)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.query = query
	w.results = results
	return results, nil
}

func (w *Widget) Query() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.query
}

func (w *Widget) Results() []models.Track {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.Track(nil), w.results...)
}

// Sync clears the visible input when token differs from the last one seen.
// It reports whether the widget was cleared.
func (w *Widget) Sync(token int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if token == w.resetToken {
		return false
	}
	w.resetToken = token
	w.query = ""
	w.results = nil
	return true
}

// Select emits the selection event for a catalog track.
func (w *Widget) Select(id int64) (models.Track, error) {
	track, ok := w.index.Lookup(id)
	if !ok {
		return models.Track{}, fmt.Errorf("track %d not in catalog", id)
	}
	if w.onSelect != nil {
		w.onSelect(track)
	}
	return track, nil
}

// SelectResult emits the selection event for the n-th visible result, 1-based.
func (w *Widget) SelectResult(n int) (models.Track, error) {
	w.mu.Lock()
	if n < 1 || n > len(w.results) {
		w.mu.Unlock()
		return models.Track{}, fmt.Errorf("no result #%d", n)
	}
	track := w.results[n-1]
	w.mu.Unlock()

	if w.onSelect != nil {
		w.onSelect(track)
	}
	return track, nil
}

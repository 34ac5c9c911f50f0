package models

// Track is a catalog entry as shown to the player.
type Track struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ArtistName string `json:"artist_name"`
	GenreName  string `json:"genre_name,omitempty"`
}

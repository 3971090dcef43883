package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SingleResultThreshold gates the single-candidate path. Scores must be strictly greater.
	SingleResultThreshold = 0.9
	// MultiResultThreshold gates the multi-candidate path. Scores equal to it are accepted.
	MultiResultThreshold = 0.85
)

// SourceTrack is a catalog listing to be matched against the streaming service.
type SourceTrack struct {
	Name          string   `json:"name"`
	Mix           string   `json:"mix"`
	Artists       []string `json:"artists"`
	Remixers      []string `json:"remixers,omitempty"`
	Release       string   `json:"release"`
	Label         string   `json:"label"`
	DurationMS    int      `json:"duration_ms"`
	PublishedDate string   `json:"published_date,omitempty"`
	Genre         string   `json:"genre,omitempty"`
	BPM           int      `json:"bpm,omitempty"`
	Key           string   `json:"key,omitempty"`
}

// NameMix is the name with " - mix" appended when a mix is present.
func (t SourceTrack) NameMix() string {
	if t.Mix == "" {
		return t.Name
	}
	return t.Name + " - " + t.Mix
}

// PrimaryArtist returns the first artist, or "" when there is none.
func (t SourceTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// HistoryKey is the textual "artist - name - mix" identity used to suppress tracks
// before they are resolved to an id.
func (t SourceTrack) HistoryKey() string {
	return t.PrimaryArtist() + " - " + t.Name + " - " + t.Mix
}

// Searchable reports whether the track has a name and a primary artist.
func (t SourceTrack) Searchable() bool {
	return strings.TrimSpace(t.Name) != "" && strings.TrimSpace(t.PrimaryArtist()) != ""
}

// Clone returns a deep copy.
func (t SourceTrack) Clone() SourceTrack {
	c := t
	c.Artists = append([]string(nil), t.Artists...)
	c.Remixers = append([]string(nil), t.Remixers...)
	return c
}

// PublishedAt parses PublishedDate as either a date or an RFC 3339 timestamp.
func (t SourceTrack) PublishedAt() (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, t.PublishedDate); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized publish date %q", t.PublishedDate)
}

// Candidate is one track returned by the streaming service's search.
type Candidate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	DurationMS int      `json:"duration_ms"`
	Artists    []string `json:"artists"`
	Popularity int      `json:"popularity,omitempty"`
}

// Playlist contains basic playlist metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
}

// PlaylistItem is one track currently in a playlist.
type PlaylistItem struct {
	TrackID string    `json:"track_id"`
	AddedAt time.Time `json:"added_at"`
	Name    string    `json:"name"`
	Artists []string  `json:"artists"`
}

// ArtistName is "first artist - name", the form stored in [HistoryRecord.ArtistName].
func (p PlaylistItem) ArtistName() string {
	artist := ""
	if len(p.Artists) > 0 {
		artist = p.Artists[0]
	}
	return artist + " - " + p.Name
}

// HistoryRecord is one append-only ledger row. Rows are duplicates when every field is equal.
type HistoryRecord struct {
	PlaylistID   string    `json:"playlist_id"`
	PlaylistName string    `json:"playlist_name"`
	TrackID      string    `json:"track_id"`
	AddedAt      time.Time `json:"datetime_added"`
	ArtistName   string    `json:"artist_name"`
}

// NewHistoryRecords converts a playlist's current items to ledger rows.
func NewHistoryRecords(p Playlist, items []PlaylistItem) []HistoryRecord {
	records := make([]HistoryRecord, 0, len(items))
	for _, item := range items {
		if item.TrackID == "" {
			continue
		}
		records = append(records, HistoryRecord{
			PlaylistID:   p.ID,
			PlaylistName: p.Name,
			TrackID:      item.TrackID,
			AddedAt:      item.AddedAt.UTC(),
			ArtistName:   item.ArtistName(),
		})
	}
	return records
}

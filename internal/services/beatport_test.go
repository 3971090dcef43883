package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/beatporter/internal/shared"
)

func beatportPage(queries string) string {
	return `<!DOCTYPE html><html><head><title>Beatport</title>
<script type="application/json" id="__NEXT_DATA__">{"props": {"pageProps": {"dehydratedState": {"queries": ` + queries + `}}}}</script>
</head><body><script>window.x = 1;</script></body></html>`
}

func beatportTrack(name, mix, published string) string {
	return `{"name": "` + name + `", "mix_name": "` + mix + `",
		"artists": [{"name": "BLOND:ISH"}, {"name": "Francis Mercier"}], "remixers": [],
		"release": {"name": "Sete", "label": {"name": "Insomniac Records"}},
		"publish_date": "` + published + `", "length": "5:18", "length_ms": 318000,
		"genre": {"name": "Afro House"}, "bpm": 122, "key": {"name": "A Minor"}}`
}

func results(tracks ...string) string {
	return `{"state": {"data": {"results": [` + strings.Join(tracks, ",") + `]}}}`
}

func newTestBeatport(t *testing.T, handler http.HandlerFunc) (*BeatportService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBeatportService(BeatportOpts{BaseURL: srv.URL, Logger: shared.NewLogger(io.Discard)}), srv
}

func TestBeatportService(t *testing.T) {
	ctx := context.Background()

	t.Run("GenreTracks", func(t *testing.T) {
		var path, agent string
		bp, _ := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
			path, agent = r.URL.Path, r.Header.Get("User-Agent")
			_, _ = io.WriteString(w, beatportPage(`[`+results(beatportTrack("Sete", "Original Mix", "2024-10-11"), beatportTrack("Cafe\\u0301", "Extended Mix", "2024-10-10"))+`]`))
		})

		tracks, err := bp.GenreTracks(ctx, "afro-house/89")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if path != "/genre/afro-house/89/top-100" {
			t.Errorf("unexpected path %s", path)
		}
		if !strings.HasPrefix(agent, "Mozilla/5.0") {
			t.Errorf("expected browser user agent, got %q", agent)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}

		sete := tracks[0]
		if sete.Name != "Sete" || sete.Mix != "Original Mix" || sete.Release != "Sete" || sete.Label != "Insomniac Records" {
			t.Errorf("unexpected track %+v", sete)
		}
		if len(sete.Artists) != 2 || sete.Artists[0] != "BLOND:ISH" || len(sete.Remixers) != 0 {
			t.Errorf("unexpected credits %+v", sete)
		}
		if sete.DurationMS != 318000 || sete.BPM != 122 || sete.Key != "A Minor" || sete.Genre != "Afro House" {
			t.Errorf("unexpected details %+v", sete)
		}
		if tracks[1].Name != "Caf\u00e9" {
			t.Errorf("expected composed name, got %q", tracks[1].Name)
		}
	})

	t.Run("GenreURL", func(t *testing.T) {
		bp := NewBeatportService(BeatportOpts{})
		if got := bp.GenreURL(""); got != "https://www.beatport.com/top-100" {
			t.Errorf("unexpected all-genres url %s", got)
		}
		if got := bp.GenreURL("melodic-house-techno/90"); got != "https://www.beatport.com/genre/melodic-house-techno/90/top-100" {
			t.Errorf("unexpected genre url %s", got)
		}
	})

	t.Run("ChartTracks Uses Second Query", func(t *testing.T) {
		bp, srv := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, beatportPage(`[{"state": {"data": {"change_date": "2024-10-01"}}}, `+results(beatportTrack("Sete", "Original Mix", "2024-10-11"))+`]`))
		})

		tracks, err := bp.ChartTracks(ctx, srv.URL+"/chart/kalambo/123456")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].Name != "Sete" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("Parse Errors", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"no script", `<html><body>nothing</body></html>`},
			{"two scripts", beatportPage(`[]`) + `<script type="application/json">{}</script>`},
			{"invalid json", `<script type="application/json">{not json</script>`},
			{"no queries", `<script type="application/json">{"props": {}}</script>`},
			{"no tracks", beatportPage(`[` + results() + `]`)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				bp, _ := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
					_, _ = io.WriteString(w, tt.body)
				})
				_, err := bp.GenreTracks(ctx, "afro-house/89")
				if !errors.Is(err, shared.ErrCatalogParse) {
					t.Errorf("expected parse error, got %v", err)
				}
			})
		}
	})

	t.Run("Server Error Is Transient", func(t *testing.T) {
		bp, _ := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		if _, err := bp.GenreTracks(ctx, ""); !errors.Is(err, shared.ErrTransient) {
			t.Errorf("expected transient error, got %v", err)
		}
	})

	t.Run("FindChart", func(t *testing.T) {
		t.Run("Chart ID In Code", func(t *testing.T) {
			calls := 0
			bp, srv := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) { calls++ })
			got, err := bp.FindChart(ctx, "Kalambo", "kalambo/123456")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != srv.URL+"/chart/kalambo/123456" || calls != 0 {
				t.Errorf("expected direct url without requests, got %s after %d calls", got, calls)
			}
		})

		t.Run("Search Picks Highest URL", func(t *testing.T) {
			var query string
			bp, srv := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.Query().Get("q")
				_, _ = io.WriteString(w, beatportPage(`[{"state": {"data": {"data": [
					{"chart_name": "Kalambo Bontan", "chart_id": 100001},
					{"chart_name": "Kalambo Bontan", "chart_id": 200002}
				]}}}]`))
			})

			got, err := bp.FindChart(ctx, "Kalambo Bontan", "kalambo")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if query != "kalambo" {
				t.Errorf("expected search for kalambo, got %q", query)
			}
			if got != srv.URL+"/chart/kalambo-bontan/200002" {
				t.Errorf("unexpected chart url %s", got)
			}
		})

		t.Run("No Results", func(t *testing.T) {
			bp, _ := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, beatportPage(`[{"state": {"data": {"data": []}}}]`))
			})
			if _, err := bp.FindChart(ctx, "Nothing", "nothing"); !errors.Is(err, shared.ErrChartNotFound) {
				t.Errorf("expected chart not found, got %v", err)
			}
		})

		for _, tt := range []struct {
			changed string
			ok      bool
		}{
			{"2024-12-01T10:00:00", true},
			{"2023-12-01T10:00:00", false},
			{"unknown", false},
		} {
			t.Run("Year "+tt.changed, func(t *testing.T) {
				bp, _ := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
					_, _ = io.WriteString(w, beatportPage(`[{"state": {"data": {"change_date": "`+tt.changed+`"}}}]`))
				})
				_, err := bp.FindChart(ctx, "Best of Afro (2024)", "best-of-afro/654321")
				if tt.ok && err != nil {
					t.Errorf("expected match, got %v", err)
				}
				if !tt.ok && !errors.Is(err, shared.ErrChartNotFound) {
					t.Errorf("expected chart not found, got %v", err)
				}
			})
		}
	})

	t.Run("LabelTracks", func(t *testing.T) {
		pages := map[string][]string{
			"1": {beatportTrack("Newest", "Original Mix", "2024-10-11"), beatportTrack("Newer", "Original Mix", "2024-10-01")},
			"2": {beatportTrack("Older", "Original Mix", "2024-09-01")},
			"3": {beatportTrack("Oldest", "Original Mix", "2024-08-01")},
		}
		var requested []string
		bp, _ := newTestBeatport(t, func(w http.ResponseWriter, r *http.Request) {
			page := r.URL.Query().Get("page")
			requested = append(requested, page)
			if r.URL.Path != "/label/koltrax/1234/tracks" || r.URL.Query().Get("per-page") != "50" {
				http.NotFound(w, r)
				return
			}
			listing := `{"state": {"data": {"page": "` + page + `/3", "results": [` + strings.Join(pages[page], ",") + `]}}}`
			_, _ = io.WriteString(w, beatportPage(`[{"state": {}}, `+listing+`]`))
		})

		t.Run("Stops At Last Update", func(t *testing.T) {
			requested = nil
			since := time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)
			tracks, err := bp.LabelTracks(ctx, "koltrax/1234", since, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(requested) != 2 {
				t.Errorf("expected 2 page requests, got %v", requested)
			}
			want := []string{"Older", "Newer", "Newest"}
			if len(tracks) != len(want) {
				t.Fatalf("expected %d tracks, got %d", len(want), len(tracks))
			}
			for i, name := range want {
				if tracks[i].Name != name {
					t.Errorf("track %d: expected %s, got %s", i, name, tracks[i].Name)
				}
			}
		})

		t.Run("Overwrite Reads Every Page", func(t *testing.T) {
			requested = nil
			since := time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)
			tracks, err := bp.LabelTracks(ctx, "koltrax/1234", since, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 4 || tracks[0].Name != "Oldest" {
				t.Errorf("expected 4 tracks oldest first, got %+v", tracks)
			}
		})
	})
}

func TestChartSlug(t *testing.T) {
	tests := map[string]string{
		"Kalambo Bontan":          "kalambo-bontan",
		"Weekend Picks 41 (2024)": "weekend-picks-41-2024",
		"A & B":                   "a-b",
		"Vol. 2":                  "vol.-2",
	}
	for in, want := range tests {
		if got := ChartSlug(in); got != want {
			t.Errorf("ChartSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPageCount(t *testing.T) {
	if n, err := pageCount("1/12"); err != nil || n != 12 {
		t.Errorf("expected 12 pages, got %d %v", n, err)
	}
	for _, bad := range []string{"", "12", "1/x", "1/0"} {
		if _, err := pageCount(bad); !errors.Is(err, shared.ErrCatalogParse) {
			t.Errorf("pageCount(%q): expected parse error, got %v", bad, err)
		}
	}
}

func TestExpandChartDate(t *testing.T) {
	wednesday := time.Date(2024, 10, 9, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 10, 13, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		pattern string
		now     time.Time
		want    string
	}{
		{"Weekend Picks (%Y)", wednesday, "Weekend Picks (2024)"},
		{"weekend-picks-%Y-%m-%d", sunday, "weekend-picks-2024-10-07"},
		{"%j %b %B %y %m-%d", wednesday, "283 Oct October 24 10-09"},
		{"Picks %Q", wednesday, "Picks %Q"},
		{"Kalambo", wednesday, "Kalambo"},
	}
	for _, tt := range tests {
		if got := ExpandChartDate(tt.pattern, tt.now); got != tt.want {
			t.Errorf("ExpandChartDate(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

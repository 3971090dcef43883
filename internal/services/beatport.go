// Beatport implementation of [CatalogSource]
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/lestrrat-go/strftime"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

const (
	beatportBaseURL   = "https://www.beatport.com"
	beatportUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/50.0.2661.102 Safari/537.36"
	labelPageSize     = 50
)

var (
	chartIDSuffix = regexp.MustCompile(`.*(/[0-9]{6})`)
	chartYear     = regexp.MustCompile(`.*(\(2[0-9]{3}\))`)
	isoDate       = regexp.MustCompile(`2[0-9]{3}-[0-9]{2}-[0-9]{2}`)
	slugDrop      = regexp.MustCompile(`[^a-zA-Z0-9 \n.]`)
)

// BeatportOpts configures a [BeatportService].
type BeatportOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	RateLimit  float64
	Logger     *log.Logger
}

// BeatportService scrapes Beatport catalog pages.
type BeatportService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewBeatportService creates a catalog client.
func NewBeatportService(opts BeatportOpts) *BeatportService {
	if opts.BaseURL == "" {
		opts.BaseURL = beatportBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &BeatportService{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     opts.Logger,
	}
}

// queries fetches a page and returns its dehydrated query list.
func (b *BeatportService) queries(ctx context.Context, pageURL string) (gjson.Result, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", beatportUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return gjson.Result{}, fmt.Errorf("%w: %s returned %d", shared.ErrTransient, pageURL, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%w: %s returned %d", shared.ErrAPIRequest, pageURL, resp.StatusCode)
	}

	data, err := embeddedJSON(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", pageURL, err)
	}

	queries := gjson.Get(data, "props.pageProps.dehydratedState.queries")
	if !queries.IsArray() {
		return gjson.Result{}, fmt.Errorf("%w: %s has no dehydrated queries", shared.ErrCatalogParse, pageURL)
	}
	return queries, nil
}

// embeddedJSON returns the text of the page's only application/json script element.
func embeddedJSON(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrCatalogParse, err)
	}

	var scripts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && attr(n, "type") == "application/json" {
			var buf strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					buf.WriteString(c.Data)
				}
			}
			scripts = append(scripts, buf.String())
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(scripts) != 1 {
		return "", fmt.Errorf("%w: expected 1 json script, found %d", shared.ErrCatalogParse, len(scripts))
	}
	if !gjson.Valid(scripts[0]) {
		return "", fmt.Errorf("%w: script is not valid json", shared.ErrCatalogParse)
	}
	return scripts[0], nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(r gjson.Result, path string) string {
	return norm.NFC.String(strings.TrimSpace(r.Get(path).String()))
}

func names(r gjson.Result, path string) []string {
	var out []string
	r.Get(path).ForEach(func(_, v gjson.Result) bool {
		if name := text(v, "name"); name != "" {
			out = append(out, name)
		}
		return true
	})
	return out
}

// parseTracks converts Beatport track objects.
func parseTracks(results gjson.Result) []models.SourceTrack {
	var tracks []models.SourceTrack
	results.ForEach(func(_, t gjson.Result) bool {
		tracks = append(tracks, models.SourceTrack{
			Name:          text(t, "name"),
			Mix:           text(t, "mix_name"),
			Artists:       names(t, "artists"),
			Remixers:      names(t, "remixers"),
			Release:       text(t, "release.name"),
			Label:         text(t, "release.label.name"),
			DurationMS:    int(t.Get("length_ms").Int()),
			PublishedDate: text(t, "publish_date"),
			Genre:         text(t, "genre.name"),
			BPM:           int(t.Get("bpm").Int()),
			Key:           text(t, "key.name"),
		})
		return true
	})
	return tracks
}

func (b *BeatportService) tracksAt(ctx context.Context, pageURL string, query int) ([]models.SourceTrack, error) {
	queries, err := b.queries(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	results := queries.Get(strconv.Itoa(query) + ".state.data.results")
	tracks := parseTracks(results)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks found on %s", shared.ErrCatalogParse, pageURL)
	}
	return tracks, nil
}

// GenreURL is the top 100 page of a genre code such as "afro-house/89".
func (b *BeatportService) GenreURL(code string) string {
	if code == "" {
		return b.baseURL + "/top-100"
	}
	return b.baseURL + "/genre/" + strings.Trim(code, "/") + "/top-100"
}

// GenreTracks implements [CatalogSource].
func (b *BeatportService) GenreTracks(ctx context.Context, code string) ([]models.SourceTrack, error) {
	return b.tracksAt(ctx, b.GenreURL(code), 0)
}

// ChartTracks implements [CatalogSource].
func (b *BeatportService) ChartTracks(ctx context.Context, chartURL string) ([]models.SourceTrack, error) {
	return b.tracksAt(ctx, chartURL, 1)
}

// ChartSlug builds the url slug Beatport uses for a chart name.
func ChartSlug(name string) string {
	slug := strings.ReplaceAll(slugDrop.ReplaceAllString(strings.ToLower(name), ""), " ", "-")
	return strings.ReplaceAll(slug, "--", "-")
}

// FindChart implements [CatalogSource].
//
// A code ending in a six digit chart id is used as is. Otherwise the code is searched and the
// highest chart url wins. When the name carries a "(YYYY)" year, the chart's change date must
// fall in that year.
func (b *BeatportService) FindChart(ctx context.Context, name, code string) (string, error) {
	var urls []string
	if chartIDSuffix.MatchString(code) {
		urls = []string{b.baseURL + "/chart/" + strings.TrimPrefix(code, "/")}
	} else {
		searchURL := fmt.Sprintf("%s/search/charts?q=%s&page=1&per_page=150", b.baseURL, url.QueryEscape(code))
		queries, err := b.queries(ctx, searchURL)
		if err != nil {
			return "", err
		}
		queries.Get("0.state.data.data").ForEach(func(_, c gjson.Result) bool {
			urls = append(urls, b.baseURL+"/chart/"+ChartSlug(c.Get("chart_name").String())+"/"+c.Get("chart_id").String())
			return true
		})
		sort.Sort(sort.Reverse(sort.StringSlice(urls)))
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: %s", shared.ErrChartNotFound, code)
	}

	m := chartYear.FindStringSubmatch(name)
	if m == nil {
		b.logger.Debug("no year in chart name", "chart", name, "url", urls[0])
		return urls[0], nil
	}

	queries, err := b.queries(ctx, urls[0])
	if err != nil {
		return "", err
	}
	changed := queries.Get("0.state.data.change_date").String()
	year := isoDate.FindString(changed)
	if year == "" {
		return "", fmt.Errorf("%w: change date %q of %s is not a date", shared.ErrChartNotFound, changed, urls[0])
	}
	if "("+year[:4]+")" != m[1] {
		return "", fmt.Errorf("%w: %s changed %s, wanted %s", shared.ErrChartNotFound, urls[0], changed, m[1])
	}
	return urls[0], nil
}

// LabelURL is one page of a label's track listing.
func (b *BeatportService) LabelURL(code string, page int) string {
	return fmt.Sprintf("%s/label/%s/tracks?page=%d&per-page=%d", b.baseURL, strings.Trim(code, "/"), page, labelPageSize)
}

// LabelTracks implements [CatalogSource]. Pages are newest first; the result is reversed.
func (b *BeatportService) LabelTracks(ctx context.Context, code string, since time.Time, overwrite bool) ([]models.SourceTrack, error) {
	first, err := b.queries(ctx, b.LabelURL(code, 1))
	if err != nil {
		return nil, err
	}
	pages, err := pageCount(first.Get("1.state.data.page").String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", code, err)
	}
	b.logger.Info("label pages", "label", code, "pages", pages, "since", since)

	var tracks []models.SourceTrack
	for page := 1; page <= pages; page++ {
		queries := first
		if page > 1 {
			if queries, err = b.queries(ctx, b.LabelURL(code, page)); err != nil {
				return nil, err
			}
		}

		batch := parseTracks(queries.Get("1.state.data.results"))
		if len(batch) == 0 {
			break
		}
		tracks = append(tracks, batch...)

		if !overwrite && publishedBefore(batch, since) {
			b.logger.Debug("reached last update", "label", code, "page", page)
			break
		}
	}

	for i, j := 0, len(tracks)-1; i < j; i, j = i+1, j-1 {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
	return tracks, nil
}

// pageCount reads the "current/total" page indicator.
func pageCount(indicator string) (int, error) {
	_, total, ok := strings.Cut(indicator, "/")
	if !ok {
		return 0, fmt.Errorf("%w: page indicator %q", shared.ErrCatalogParse, indicator)
	}
	n, err := strconv.Atoi(strings.TrimSpace(total))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: page indicator %q", shared.ErrCatalogParse, indicator)
	}
	return n, nil
}

func publishedBefore(tracks []models.SourceTrack, since time.Time) bool {
	if since.IsZero() {
		return false
	}
	for _, t := range tracks {
		if published, err := t.PublishedAt(); err == nil && published.Before(since) {
			return true
		}
	}
	return false
}

// ExpandChartDate fills strftime directives in a chart name or code. On Sundays the date
// used is six days earlier, so weekly charts keep pointing at the week that just ended.
// A pattern with an unknown directive is returned unchanged.
func ExpandChartDate(pattern string, now time.Time) string {
	if !strings.Contains(pattern, "%") {
		return pattern
	}
	if now.Weekday() == time.Sunday {
		now = now.AddDate(0, 0, -6)
	}
	out, err := strftime.Format(pattern, now)
	if err != nil {
		return pattern
	}
	return out
}

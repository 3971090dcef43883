// Package services implements the remote collaborators of a sync run.
//
// # Catalog
//
// [BeatportService] implements [CatalogSource]. Beatport pages embed their data in a single
// <script type="application/json"> element; the service locates it with golang.org/x/net/html
// and walks props.pageProps.dehydratedState.queries with gjson. Strings are NFC-normalized so
// they compare equal to the streaming service's titles.
//
// # Streaming service
//
// [SpotifyService] implements [SearchBackend], [PlaylistStore] and [Session] on top of
// github.com/zmb3/spotify/v2. Requests are paced by a [rate.Limiter].
//
// # Search cache
//
// [CachedSearch] decorates a [SearchBackend] with a redis cache keyed by query text.
//
// # Error Handling
//
// Services map remote failures onto the sentinels of the shared package:
//   - [shared.ErrTokenExpired] : HTTP 401, the session must be refreshed
//   - [shared.ErrTransient] : HTTP 429, 5xx or a network failure, safe to retry
//   - [shared.ErrAPIRequest] : any other rejected request
//   - [shared.ErrPlaylistNotFound] : playlist id not found
//   - [shared.ErrCatalogParse] : catalog page without the expected embedded data
//
// Search treats HTTP 400 and 404 as "no results".
package services

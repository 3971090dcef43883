// Package server runs the short-lived HTTP server that completes the Spotify authorization
// code flow for the auth command.
//
// # Router
//
// [BasicRouter] implements [Router] on [http.ServeMux] method patterns. [Middleware] added with
// Use wraps handlers so the first added runs outermost; [RequestLogger] is the only one in use.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code through an
// [Exchanger] and sends exactly one result through its channel. A second callback is rejected.
//
// [Await] serves a router on a listener until that result arrives or the context ends, then
// shuts the server down. The listener normally binds the host and port of the configured
// redirect_uri; [CallbackPath] gives the matching route.
package server

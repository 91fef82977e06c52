// Package httpserver exposes the trust rotation workflow over HTTP.
//
// The API is namespaced: every route is rooted at /api/trust/{namespace},
// and the handler lazily builds one trust engine per namespace through an
// EngineFactory. Mutating routes (init, operation creation, signing, apply,
// migrate) return the structured errors of the trust package mapped onto
// HTTP status codes; read routes mirror the engine's fail-closed behavior
// and degrade to 404 or negative answers rather than guesses.
//
// The server itself follows a liveness/readiness/drain lifecycle so load
// balancers can rotate instances without dropping in-flight requests.
package httpserver

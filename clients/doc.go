// Package clients provides Go clients for the trust rotation HTTP API. The
// trustctl CLI is built on TrustClient; services embedding trust checks into
// their own request paths can use it directly.
package clients

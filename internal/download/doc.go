// Package download fetches driver artifacts over HTTP with caching, retries
// and exponential backoff.
//
// Fetch never returns an error: every outcome, including exhausted retries,
// is reported through Result so the caller can record it and move on.
//
// Transfers stream into <dest>.part and are renamed onto dest only after the
// body is complete, so a crash never leaves a truncated artifact that looks
// like a cache hit. Failed attempts, including non-2xx responses, wait 1s,
// 2s, 4s and so on before the next retry.
package download

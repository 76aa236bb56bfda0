// Package transport fetches board pages over HTTP.
//
// A Client spaces requests to each host with a token bucket, optionally
// routes every connection through a SOCKS5 proxy, keeps cookies across
// requests, injects configured headers, caps redirects and body size, and
// decodes responses to UTF-8. Jcink skins are frequently served as
// ISO-8859-1 or windows-1252, so the charset is taken from the
// Content-Type header or sniffed from the document when absent.
//
// Any failure, including a non-2xx status, is returned as an error.
// Status failures are *HTTPError so callers can tell them apart.
package transport

// Package log provides slog handlers that keep board credentials out of
// log output.
//
// The SecureHandler masks:
//   - HTTP headers that carry credentials (Cookie, Authorization, Proxy-Authorization)
//   - Jcink session cookies (pass_hash, session_id) wherever they appear in a value
//   - passwords embedded in URLs as user:password@host
//   - bearer and basic credentials and long opaque tokens
//
// Header maps logged as a single attribute are expanded into a group so
// each header is checked on its own. Masking applies in verbose mode too.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("request sent", "cookie", "member_id=1; pass_hash=abc")
//	slog.SetDefault(logger)
package log

// Package log builds the daemon's slog logger.
//
// Every record passes through a RedactingHandler before it is written.
// Attributes whose key names a credential (cookie, authorization, token,
// session and similar) are replaced with MaskValue. String values that look
// like bearer tokens or JWTs are masked regardless of key, and URLs have
// their user info and credential-like query parameters masked so page
// addresses can be logged safely.
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	slog.SetDefault(logger)
//	logger.Info("page created", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=***REDACTED***
package log

// Package fingerprint derives content-addressed cache keys for source files.
//
// A fingerprint is the lowercase hex SHA-256 digest of a file's raw content.
// The path is deliberately not part of the digest: two files with
// byte-identical content share one fingerprint, in any run, on any machine.
// Content that is not valid UTF-8 text is rejected with a ValidationError,
// since the analysis pipeline only handles text.
package fingerprint

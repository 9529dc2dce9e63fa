// Package jwt issues and verifies the session tokens handed out by the
// in-memory directory, and reads the expiry of tokens issued elsewhere so a
// stored session can be discarded once its token has lapsed.
package jwt

package xfer

import "github.com/dustin/go-humanize"

// FormatSize renders a byte count as a human-readable string (e.g. "1.2 MB"),
// used for progress logging on both the sender and receiver.
func FormatSize(bytes uint64) string {
	return humanize.Bytes(bytes)
}

// ParseSize parses a human-readable size string (e.g. "10MB") back into a
// byte count, used to validate a configured rate-limit flag.
func ParseSize(s string) (uint64, error) {
	return humanize.ParseBytes(s)
}

// Package linejson frames JSON values over a byte stream, one value per line.
//
// The wire convention is newline-delimited UTF-8 text with no envelope, length
// prefix, or checksum. A Receiver turns arbitrarily chunked bytes into records,
// and a Sender writes one serialized record per write call.
package linejson

// Package geoip wraps an MMDB reader for the output writer's optional
// geolocation enrichment (spec §4.7/§6). The database file itself is
// downloaded and cached by an external collaborator; this package only
// consumes its lookup interface.
package geoip

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Reader performs synchronous MMDB lookups. It must be opened exactly once
// per C7 run and closed in a guaranteed-release scope (spec §5).
type Reader struct {
	db *maxminddb.Reader
}

// Open opens the MMDB file at path.
func Open(path string) (*Reader, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Lookup returns the opaque record for ip, or (nil, false) if ip is
// unparseable or absent from the database. The record is serialized
// verbatim into JSON output by the caller.
func (r *Reader) Lookup(ip string) (map[string]any, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, false
	}

	var record map[string]any
	if err := r.db.Lookup(parsed, &record); err != nil || record == nil {
		return nil, false
	}
	return record, true
}

// NullReader is a no-op Reader used when geolocation is disabled, so the
// output writer does not need to branch on a nil *Reader everywhere.
type NullReader struct{}

func (NullReader) Lookup(string) (map[string]any, bool) { return nil, false }

// Lookuper is the narrow interface the output writer depends on.
type Lookuper interface {
	Lookup(ip string) (map[string]any, bool)
}

package geoip

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP resolves visitor countries for page targeting. It reads a MaxMind
// database, or a JSON list of {"net","country","region"} records when the
// file is not an mmdb (used in tests and local setups).
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

// Location is the result of a lookup. Empty fields mean unknown.
type Location struct {
	Country string
	Region  string
}

type record struct {
	net      *net.IPNet
	location Location
}

// Init opens the database located at path.
func Init(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err == nil {
		return &GeoIP{db: db}, nil
	}

	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
		Region  string `json:"region"`
	}
	if jerr := json.Unmarshal(data, &entries); jerr != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}

	g := &GeoIP{}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, record{net: n, location: Location{Country: e.Country, Region: e.Region}})
		}
	}
	return g, nil
}

// Lookup returns the location of ip. A nil GeoIP or unknown address yields
// an empty Location.
func (g *GeoIP) Lookup(ip net.IP) Location {
	if g == nil || ip == nil {
		return Location{}
	}
	if g.db != nil {
		if rec, err := g.db.City(ip); err == nil {
			loc := Location{Country: rec.Country.IsoCode}
			if len(rec.Subdivisions) > 0 {
				loc.Region = rec.Subdivisions[0].IsoCode
			}
			return loc
		}
		if rec, err := g.db.Country(ip); err == nil {
			return Location{Country: rec.Country.IsoCode}
		}
	}
	for _, r := range g.fallback {
		if r.net.Contains(ip) {
			return r.location
		}
	}
	return Location{}
}

// Country returns the ISO country code for ip, or "".
func (g *GeoIP) Country(ip net.IP) string {
	return g.Lookup(ip).Country
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}

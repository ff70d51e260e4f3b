package clgeoip

import (
	"fmt"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
)

// Location est le résultat d'une résolution d'adresse
type Location struct {
	Country string
	City    string
}

// Locator résout une adresse IP en localisation
type Locator interface {
	Lookup(ip string) (Location, bool)
}

// Reader lit une base MaxMind GeoIP2/GeoLite2 City
type Reader struct {
	db *geoip2.Reader
}

func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ouverture base geoip %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Lookup(ip string) (Location, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.IsLoopback() || addr.IsPrivate() {
		return Location{}, false
	}

	record, err := r.db.City(addr)
	if err != nil || !record.HasData() {
		return Location{}, false
	}
	return Location{
		Country: record.Country.ISOCode,
		City:    record.City.Names.English,
	}, true
}

func (r *Reader) Close() error {
	return r.db.Close()
}

// Static renvoie toujours la même localisation, utile hors production
type Static map[string]Location

func (s Static) Lookup(ip string) (Location, bool) {
	loc, ok := s[ip]
	return loc, ok
}

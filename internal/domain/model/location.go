package model

import (
	"fmt"
	"sort"
)

// Location is a municipality identified by its 7-digit IBGE code.
type Location struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

var catalog = map[string]Location{
	"3550308": {Code: "3550308", Name: "São Paulo", State: "SP", Latitude: -23.5505, Longitude: -46.6333},
	"3304557": {Code: "3304557", Name: "Rio de Janeiro", State: "RJ", Latitude: -22.9068, Longitude: -43.1729},
	"2927408": {Code: "2927408", Name: "Salvador", State: "BA", Latitude: -12.9714, Longitude: -38.5014},
	"2304400": {Code: "2304400", Name: "Fortaleza", State: "CE", Latitude: -3.7319, Longitude: -38.5267},
	"1302603": {Code: "1302603", Name: "Manaus", State: "AM", Latitude: -3.1190, Longitude: -60.0217},
	"5300108": {Code: "5300108", Name: "Brasília", State: "DF", Latitude: -15.7801, Longitude: -47.9292},
}

// LookupLocation returns the catalog entry for code.
func LookupLocation(code string) (Location, bool) {
	loc, ok := catalog[code]
	return loc, ok
}

// Catalog returns every known location ordered by code.
func Catalog() []Location {
	out := make([]Location, 0, len(catalog))
	for _, loc := range catalog {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ResolveLocations maps configured codes onto the catalog. Unknown codes are an error.
func ResolveLocations(codes []string) ([]Location, error) {
	out := make([]Location, 0, len(codes))
	for _, code := range codes {
		loc, ok := catalog[code]
		if !ok {
			return nil, fmt.Errorf("unknown location code %q", code)
		}
		out = append(out, loc)
	}
	return out, nil
}

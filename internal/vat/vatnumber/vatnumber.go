// Package vatnumber checks VAT identification numbers against the national
// format of the country that issued them. It does not query VIES.
package vatnumber

import (
	"regexp"
	"strings"
)

var formats = map[string]*regexp.Regexp{
	"AT": regexp.MustCompile(`^U\d{8}$`),
	"BE": regexp.MustCompile(`^[01]\d{9}$`),
	"BG": regexp.MustCompile(`^\d{9,10}$`),
	"CY": regexp.MustCompile(`^\d{8}[A-Z]$`),
	"CZ": regexp.MustCompile(`^\d{8,10}$`),
	"DE": regexp.MustCompile(`^\d{9}$`),
	"DK": regexp.MustCompile(`^\d{8}$`),
	"EE": regexp.MustCompile(`^\d{9}$`),
	"EL": regexp.MustCompile(`^\d{9}$`),
	"ES": regexp.MustCompile(`^[A-Z0-9]\d{7}[A-Z0-9]$`),
	"FI": regexp.MustCompile(`^\d{8}$`),
	"FR": regexp.MustCompile(`^[A-HJ-NP-Z0-9]{2}\d{9}$`),
	"GB": regexp.MustCompile(`^(\d{9}|\d{12}|GD\d{3}|HA\d{3})$`),
	"HR": regexp.MustCompile(`^\d{11}$`),
	"HU": regexp.MustCompile(`^\d{8}$`),
	"IE": regexp.MustCompile(`^(\d{7}[A-W][A-I]?|\d[A-Z+*]\d{5}[A-W])$`),
	"IT": regexp.MustCompile(`^\d{11}$`),
	"LT": regexp.MustCompile(`^(\d{9}|\d{12})$`),
	"LU": regexp.MustCompile(`^\d{8}$`),
	"LV": regexp.MustCompile(`^\d{11}$`),
	"MT": regexp.MustCompile(`^\d{8}$`),
	"NL": regexp.MustCompile(`^\d{9}B\d{2}$`),
	"PL": regexp.MustCompile(`^\d{10}$`),
	"PT": regexp.MustCompile(`^\d{9}$`),
	"RO": regexp.MustCompile(`^\d{2,10}$`),
	"SE": regexp.MustCompile(`^\d{10}01$`),
	"SI": regexp.MustCompile(`^\d{8}$`),
	"SK": regexp.MustCompile(`^\d{10}$`),
	"XI": regexp.MustCompile(`^(\d{9}|\d{12}|GD\d{3}|HA\d{3})$`),
}

// vatPrefix maps ISO 3166 country codes to the prefix used on VAT numbers
// where the two differ.
var vatPrefix = map[string]string{
	"GR": "EL",
}

// Normalize upper-cases the number and strips spaces, dots and dashes.
func Normalize(number string) string {
	replacer := strings.NewReplacer(" ", "", ".", "", "-", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(number)))
}

// PrefixFor returns the VAT number prefix for an ISO country code.
func PrefixFor(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if prefix, ok := vatPrefix[country]; ok {
		return prefix
	}
	return country
}

// Valid reports whether number is well formed for country. The country prefix
// is optional; a number carrying another country's prefix fails the pattern.
func Valid(country, number string) bool {
	prefix := PrefixFor(country)
	pattern, ok := formats[prefix]
	if !ok {
		return false
	}

	normalized := Normalize(number)
	if strings.HasPrefix(normalized, prefix) && pattern.MatchString(normalized[len(prefix):]) {
		return true
	}
	return pattern.MatchString(normalized)
}

// Supported reports whether a format is known for country.
func Supported(country string) bool {
	_, ok := formats[PrefixFor(country)]
	return ok
}

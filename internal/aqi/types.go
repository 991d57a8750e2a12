// Package aqi obsahuje doménový model měření kvality vzduchu.
package aqi

import "time"

// Series je název časové řady (tabulky), do které se ukládají měření.
const Series = "aqi"

// Packet je dekódovaná zpráva ze senzoru.
// Senzor posílá i další pole (např. diagnostiku WiFi), ta nás nezajímají.
type Packet struct {
	PM25 int `json:"pm25"`
}

// Reading je jedno měření připravené k zápisu do časové řady.
type Reading struct {
	// PM25: koncentrace jemných částic PM2.5 (µg/m³).
	PM25 int `json:"pm25"`

	// Time: čas zpracování zprávy (UTC), ne čas uvedený v payloadu.
	Time time.Time `json:"time"`
}

// NewReading vytvoří měření z paketu a času zpracování.
func NewReading(p Packet, now time.Time) Reading {
	return Reading{PM25: p.PM25, Time: now.UTC()}
}

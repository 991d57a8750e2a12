package aqi

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrParse obaluje všechny chyby dekódování payloadu.
	ErrParse = errors.New("invalid aqi payload")

	// ErrMissingPM25 znamená, že v JSON objektu chybí pole pm25 (nebo je null).
	ErrMissingPM25 = fmt.Errorf("%w: missing pm25", ErrParse)
)

// wirePacket používá pointer, abychom odlišili chybějící pole od nuly.
// int32 odpovídá sloupci INTEGER, hodnotu mimo rozsah odmítne už dekodér.
type wirePacket struct {
	PM25 *int32 `json:"pm25"`
}

// ParsePacket dekóduje syrový payload ze sběrnice.
// Vrací chybu obalující ErrParse, pokud payload není JSON objekt,
// pole pm25 chybí, nebo to není celé číslo v rozsahu int32.
func ParsePacket(payload []byte) (Packet, error) {
	var wire wirePacket
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if wire.PM25 == nil {
		return Packet{}, ErrMissingPM25
	}
	return Packet{PM25: int(*wire.PM25)}, nil
}

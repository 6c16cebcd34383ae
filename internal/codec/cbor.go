// Package codec holds the engine's CBOR configuration for internal state
// such as cached fleet snapshots. Broker payloads stay JSON.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Core Deterministic Encoding: equal values always produce equal bytes,
// so snapshots can be compared by content.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Enum types validate themselves through UnmarshalText.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders data in CBOR diagnostic notation for debug logging.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

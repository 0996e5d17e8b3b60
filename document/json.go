package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Encode marshals a serialized document tree.
func Encode(doc any) ([]byte, error) {
	return json.Marshal(doc)
}

// Decode unmarshals JSON into a document tree. Numbers are kept as
// json.Number so integer precision survives. Empty input decodes to nil.
func Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader is Decode for a stream.
func DecodeReader(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// Package envelope normalizes the response wrappers returned by the PHP
// endpoints into one shape before any console code sees them.
//
// Endpoints answer with one of:
//
//	{"status":"ok","records":[...]}
//	{"status":"success","data":[...]}
//	{"status":"ok","data":"U2FsdGVkX1..."}            (encrypted data)
//	{"status":"ok","data":{"records":[...]}}
//	{"status":"error","message":"Insufficient balance"}
//
// and sometimes encrypt the whole body. Status matching is case-insensitive
// against "ok" and "success".
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/paydesk/internal/app/system/cryptobox"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the (decrypted) body is not JSON.
var ErrInvalidJSON = errors.New("envelope: response is not valid JSON")

// Decrypter reverses the CRYPTO helper. *cryptobox.Box satisfies it.
type Decrypter interface {
	Decrypt(ciphertext string) ([]byte, error)
}

// Envelope is a normalized endpoint response.
type Envelope struct {
	Status  string
	OK      bool
	Message string
	Records []models.Record
	Raw     []byte // decrypted body
}

// IsOK reports whether status is "ok" or "success", ignoring case and
// surrounding whitespace.
func IsOK(status string) bool {
	s := strings.TrimSpace(status)
	return strings.EqualFold(s, "ok") || strings.EqualFold(s, "success")
}

// Decode normalizes body. dec may be nil when the endpoint is not
// encrypted; encrypted payloads then fail to parse.
func Decode(body []byte, dec Decrypter) (Envelope, error) {
	body = bytes.TrimSpace(body)

	if dec != nil && cryptobox.LooksEncrypted(string(body)) {
		plain, err := dec.Decrypt(string(body))
		if err != nil {
			return Envelope{}, fmt.Errorf("envelope: decrypt body: %w", err)
		}
		body = bytes.TrimSpace(plain)
	}

	if !gjson.ValidBytes(body) {
		return Envelope{}, ErrInvalidJSON
	}

	root := gjson.ParseBytes(body)
	env := Envelope{
		Status:  root.Get("status").String(),
		Message: root.Get("message").String(),
		Raw:     body,
	}
	env.OK = IsOK(env.Status)

	recs, err := extractRecords(root, dec)
	if err != nil {
		return Envelope{}, err
	}
	env.Records = recs
	return env, nil
}

// extractRecords looks for the record set under "records" first, then
// under "data" (plain array, nested object, or encrypted string). An
// object without a records or data array is not a record set.
func extractRecords(root gjson.Result, dec Decrypter) ([]models.Record, error) {
	if r := root.Get("records"); r.IsArray() {
		return decodeArray(r)
	}

	data := root.Get("data")
	if !data.Exists() {
		return nil, nil
	}

	if data.Type == gjson.String {
		s := data.String()
		switch {
		case dec != nil && cryptobox.LooksEncrypted(s):
			plain, err := dec.Decrypt(s)
			if err != nil {
				return nil, fmt.Errorf("envelope: decrypt data: %w", err)
			}
			data = gjson.ParseBytes(bytes.TrimSpace(plain))
		case gjson.Valid(s):
			// double-encoded JSON
			data = gjson.Parse(s)
		default:
			return nil, nil
		}
	}

	switch {
	case data.IsArray():
		return decodeArray(data)
	case data.IsObject():
		if r := data.Get("records"); r.IsArray() {
			return decodeArray(r)
		}
		if r := data.Get("data"); r.IsArray() {
			return decodeArray(r)
		}
		// empty lists and summary objects ({"total":0}) carry no rows
		return nil, nil
	default:
		return nil, nil
	}
}

func decodeArray(arr gjson.Result) ([]models.Record, error) {
	items := arr.Array()
	out := make([]models.Record, 0, len(items))
	for _, it := range items {
		if !it.IsObject() {
			continue
		}
		rec, err := decodeObject(it.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// decodeObject keeps numbers as json.Number so long account numbers and
// ids survive without float rounding.
func decodeObject(raw string) (models.Record, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var rec models.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("envelope: decode record: %w", err)
	}
	return rec, nil
}

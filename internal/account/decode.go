package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("account not found")
	ErrNoObjects     = errors.New("no JSON object found in request body")
	ErrNothingStored = errors.New("no valid account snapshot in request body")
	ErrMalformedJSON = errors.New("invalid JSON")
	ErrInvalidField  = errors.New("invalid field")
	ErrInvalidQuery  = errors.New("invalid query")
)

// RequiredFields is the canonical set every payload must carry. Everything
// else defaults to zero when absent.
var RequiredFields = []string{
	"account_number",
	"broker",
	"balance",
	"equity",
	"margin_used",
	"free_margin",
	"margin_percent",
	"profit_loss",
}

// MissingFieldError names the first required field absent from a payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decodeSnapshot parses one recovered object into a Snapshot.
func decodeSnapshot(span string) (*Snapshot, error) {
	dec := json.NewDecoder(strings.NewReader(span))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	for _, field := range RequiredFields {
		if v, ok := raw[field]; !ok || v == nil {
			return nil, &MissingFieldError{Field: field}
		}
	}

	var snap Snapshot
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(decimalHook, boolHook),
		WeaklyTypedInput: true,
		Result:           &snap,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	if snap.AccountNumber <= 0 {
		return nil, fmt.Errorf("%w: account_number must be positive", ErrInvalidField)
	}
	snap.Broker = strings.TrimSpace(snap.Broker)
	return &snap, nil
}

// decimalHook accepts JSON numbers and numeric strings for decimal columns.
func decimalHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case decimal.Decimal:
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as a decimal", data)
}

// boolHook treats a JSON boolean or the string "true" as a flag; any other
// string is false.
func boolHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Bool {
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		return v, nil
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true"), nil
	}
	return data, nil
}

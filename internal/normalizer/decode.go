package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
)

// featureNamespace seeds derived feature ids.
var featureNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/telhawk-systems/etl-central-square/feature"))

// decode parses body into generic JSON values, keeping numbers as json.Number.
func decode(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, apperr.Malformed("Empty payload", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperr.Malformed("Payload is not valid JSON", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperr.Malformed("Payload has trailing data", nil)
	}
	return v, nil
}

// records returns v as a list of JSON objects. Non-object array members are
// skipped; ok is false when v is neither an object nor an array.
func records(v any) (out []map[string]any, ok bool) {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}, true
	case []any:
		for _, item := range t {
			if m, isObj := item.(map[string]any); isObj {
				out = append(out, m)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// lookup resolves a dot-separated path inside m.
func lookup(m map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// stableID derives a deterministic id from a record so redelivery of the same
// CAD event maps to the same feature id.
func stableID(record any) string {
	canonical, err := json.Marshal(record)
	if err != nil {
		canonical = []byte(fmt.Sprint(record))
	}
	return uuid.NewSHA1(featureNamespace, canonical).String()
}

// asString accepts strings and numbers.
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// asFloat accepts numbers and numeric strings.
func asFloat(v any) (float64, bool) {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func validLatLon(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 3:04:05 PM",
}

// asTime accepts the timestamp layouts seen in CAD exports and epoch seconds
// or milliseconds.
func asTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	}
	f, ok := asFloat(v)
	if !ok || f <= 0 {
		return time.Time{}, false
	}
	// Values past year 2286 in seconds are taken as milliseconds.
	if f > 1e10 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// Package parser normalizes the loosely-structured output of external
// collection workflows into record lists.
//
// The upstream workflow's output format is not contractually stable: the same
// workflow may return a plain array, a wrapped object, a double-encoded JSON
// string, or outright malformed JSON. Parse is therefore a best-effort
// cascade rather than a single deserializer. It never returns an error; every
// failure path degrades to an empty record list with diagnostics, preserving
// the original payload for audit.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// Result is the outcome of a parse operation. Exactly one of Data or
// ParseError is meaningful: an empty Data with a non-empty ParseError means
// the payload could not be normalized, and RawContent holds the untouched
// input for diagnosis.
type Result struct {
	Data       []domain.Record `json:"data"`
	ParseError string          `json:"parse_error,omitempty"`
	RawContent interface{}     `json:"raw_content,omitempty"`
}

// OK reports whether the parse produced records without diagnostics.
func (r Result) OK() bool {
	return r.ParseError == ""
}

// bracketRe extracts the first [...] substring from malformed output. The
// workflow sometimes surrounds a valid JSON array with prose.
var bracketRe = regexp.MustCompile(`\[[\s\S]*\]`)

// trailingCommaRe matches a comma directly before a closing brace or bracket.
var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// quoteGapRe matches two quoted values separated by whitespace where a comma
// was dropped.
var quoteGapRe = regexp.MustCompile(`"\s+"`)

// Parse normalizes content into a list of records. It never fails: malformed
// input yields Result{Data: nil-or-empty, ParseError: ..., RawContent: content}.
//
// Decision order (first match wins):
//  1. content is already an array: returned as-is.
//  2. content is a string: unquote one layer if double-encoded, then JSON
//     parse; on failure try bracket extraction, then best-effort repair.
//  3. content is an object with a "data" array: use that.
//  4. content is an object with both "city" and "content": flatten.
//  5. anything else: diagnostic parse error.
func Parse(content interface{}) Result {
	switch v := content.(type) {
	case nil:
		return Result{
			Data:       []domain.Record{},
			ParseError: "unexpected content shape: <nil>",
			RawContent: content,
		}

	case []interface{}:
		return Result{Data: toRecords(v)}

	case []domain.Record:
		return Result{Data: v}

	case string:
		return parseString(v)

	case map[string]interface{}:
		if data, ok := dataArray(v); ok {
			return Result{Data: toRecords(data)}
		}
		if hasCityContent(v) {
			return Result{Data: []domain.Record{flattenCityContent(v)}}
		}
		return Result{
			Data:       []domain.Record{},
			ParseError: "unexpected object shape: no data array or city/content keys",
			RawContent: content,
		}

	case domain.Record:
		return Parse(map[string]interface{}(v))

	default:
		return Result{
			Data:       []domain.Record{},
			ParseError: fmt.Sprintf("unexpected content shape: %T", content),
			RawContent: content,
		}
	}
}

// parseString handles the string branch of the cascade: one layer of
// unquoting, direct JSON parse, bracket extraction, then repair.
func parseString(s string) Result {
	decoded := unquoteOnce(s)

	parsed, err := parseJSON(decoded)
	if err == nil {
		return interpretParsed(parsed, s)
	}
	origErr := err

	// The payload may bury a valid array inside prose or log noise.
	if m := bracketRe.FindString(decoded); m != "" {
		if parsed, bErr := parseJSON(m); bErr == nil {
			return interpretParsed(parsed, s)
		}
	}

	repaired := repair(decoded)
	parsed, repErr := parseJSON(repaired)
	if repErr == nil {
		return interpretParsed(parsed, s)
	}

	return Result{
		Data: []domain.Record{},
		ParseError: fmt.Sprintf("failed to parse workflow content: %v (after repair: %v)",
			origErr, repErr),
		RawContent: s,
	}
}

// unquoteOnce decodes exactly one layer of JSON string encoding, such as
// `"[1,2]"` to `[1,2]`. Anything that is not a quoted JSON string passes
// through untouched.
func unquoteOnce(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, `"`) || !strings.HasSuffix(trimmed, `"`) {
		return s
	}
	var inner string
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return s
	}
	return inner
}

// interpretParsed applies the cascade's value rules to a successfully
// decoded JSON value. raw is the original string input, preserved in
// diagnostics.
func interpretParsed(parsed interface{}, raw string) Result {
	switch v := parsed.(type) {
	case map[string]interface{}:
		if hasCityContent(v) {
			return Result{Data: []domain.Record{flattenCityContent(v)}}
		}
		if data, ok := dataArray(v); ok {
			return Result{Data: toRecords(data)}
		}
		return Result{Data: []domain.Record{domain.Record(v)}}

	case []interface{}:
		return Result{Data: toRecords(v)}

	default:
		return Result{
			Data:       []domain.Record{},
			ParseError: fmt.Sprintf("parsed content is not an array or object: %T", parsed),
			RawContent: raw,
		}
	}
}

// repair applies best-effort string fixes to malformed JSON: stray escape
// backslashes, dropped commas between quoted values, and trailing commas.
// It is a fallback layer, not a parser.
func repair(s string) string {
	out := strings.ReplaceAll(s, `\`, "")
	out = quoteGapRe.ReplaceAllString(out, `","`)
	out = trailingCommaRe.ReplaceAllString(out, "$1")
	return out
}

func parseJSON(s string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// hasCityContent reports whether the object carries both "city" and
// "content" keys, the city-overview shape produced by overview workflows.
func hasCityContent(m map[string]interface{}) bool {
	_, hasCity := m["city"]
	_, hasContent := m["content"]
	return hasCity && hasContent
}

// flattenCityContent merges the "content" object's keys into a single record
// alongside the city name. pictures and pictureAdvises default to empty
// arrays so downstream consumers can iterate without nil checks.
func flattenCityContent(m map[string]interface{}) domain.Record {
	rec := domain.Record{}
	if inner, ok := m["content"].(map[string]interface{}); ok {
		for k, val := range inner {
			rec[k] = val
		}
	}
	rec["city"] = m["city"]
	if _, ok := rec["pictureAdvises"]; !ok {
		rec["pictureAdvises"] = []interface{}{}
	}
	if _, ok := rec["pictures"]; !ok {
		rec["pictures"] = []interface{}{}
	}
	return rec
}

// dataArray extracts a "data" array property when present.
func dataArray(m map[string]interface{}) ([]interface{}, bool) {
	data, ok := m["data"].([]interface{})
	return data, ok
}

// toRecords converts a decoded JSON array to records. Non-object elements
// are preserved under a "value" key rather than dropped.
func toRecords(items []interface{}) []domain.Record {
	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			records = append(records, domain.Record(m))
			continue
		}
		records = append(records, domain.Record{"value": item})
	}
	return records
}

package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
)

// Record is a sanitized catalog record plus the position of its line.
type Record struct {
	Product types.Product
	Offset  int64
	Number  int
}

// Sanitizer projects upstream JSON lines onto the catalog record.
//
// Upstream fields are loosely typed: numbers arrive as strings and the
// other way round, so each field is coerced to its target type and left at
// the zero value when it cannot be. Only a line that is not a JSON object, or
// that has no usable code, is rejected.
type Sanitizer struct {
	now func() time.Time
}

// NewSanitizer creates a Sanitizer that stamps records with now().
func NewSanitizer(now func() time.Time) *Sanitizer {
	if now == nil {
		now = time.Now
	}
	return &Sanitizer{now: now}
}

// Sanitize converts one line. Failures carry ErrMalformedRecord.
func (s *Sanitizer) Sanitize(line Line) (Record, error) {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(line.Raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Record{}, errors.WithCode(err, errors.ErrMalformedRecord, "decoding line")
	}
	if _, err := dec.Token(); err != io.EOF {
		return Record{}, errors.New(errors.ErrMalformedRecord, "trailing data after JSON object")
	}
	if doc == nil {
		return Record{}, errors.New(errors.ErrMalformedRecord, "line is not a JSON object")
	}

	code := NormalizeCode(asString(doc["code"]))
	if code == "" {
		return Record{}, errors.New(errors.ErrMalformedRecord, "missing code")
	}

	p := types.Product{
		Code:            code,
		Status:          types.StatusDraft,
		ImportedT:       s.now().UTC(),
		URL:             asString(doc["url"]),
		Creator:         asString(doc["creator"]),
		CreatedT:        asInt(doc["created_t"]),
		LastModifiedT:   asInt(doc["last_modified_t"]),
		ProductName:     asString(doc["product_name"]),
		Quantity:        asString(doc["quantity"]),
		Brands:          asString(doc["brands"]),
		Categories:      asString(doc["categories"]),
		Labels:          asString(doc["labels"]),
		Cities:          asString(doc["cities"]),
		PurchasePlaces:  asString(doc["purchase_places"]),
		Stores:          asString(doc["stores"]),
		IngredientsText: asString(doc["ingredients_text"]),
		Traces:          asString(doc["traces"]),
		ServingSize:     asString(doc["serving_size"]),
		ServingQuantity: asFloat(doc["serving_quantity"]),
		NutriscoreScore: asInt(doc["nutriscore_score"]),
		NutriscoreGrade: asString(doc["nutriscore_grade"]),
		MainCategory:    asString(doc["main_category"]),
		ImageURL:        asString(doc["image_url"]),
	}

	return Record{Product: p, Offset: line.Offset, Number: line.Number}, nil
}

// NormalizeCode keeps only the ASCII digits of an upstream code.
func NormalizeCode(code string) string {
	return helpers.DigitsOnly(code)
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func asFloat(v interface{}) float64 {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func asInt(v interface{}) int64 {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if s, ok := v.(string); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i
		}
	}
	f := asFloat(v)
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

package types

import (
	"encoding/json"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
)

// Patch is a partial update of a catalog record keyed by JSON field name.
type Patch map[string]json.RawMessage

// patchableFields are the fields a caller may change through Update. code
// and imported_t belong to the import pipeline.
var patchableFields = map[string]bool{
	"status":           true,
	"url":              true,
	"creator":          true,
	"created_t":        true,
	"last_modified_t":  true,
	"product_name":     true,
	"quantity":         true,
	"brands":           true,
	"categories":       true,
	"labels":           true,
	"cities":           true,
	"purchase_places":  true,
	"stores":           true,
	"ingredients_text": true,
	"traces":           true,
	"serving_size":     true,
	"serving_quantity": true,
	"nutriscore_score": true,
	"nutriscore_grade": true,
	"main_category":    true,
	"image_url":        true,
}

// Apply returns a copy of p with the patch applied. Unknown or read-only
// fields, values of the wrong JSON type and unknown statuses are rejected with
// ErrInvalidArgument.
func (patch Patch) Apply(p Product) (Product, error) {
	if len(patch) == 0 {
		return p, nil
	}

	doc := make(map[string]json.RawMessage)
	raw, err := json.Marshal(p)
	if err != nil {
		return p, errors.Wrap(err, "encoding product")
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return p, errors.Wrap(err, "decoding product")
	}

	for field, value := range patch {
		if !patchableFields[field] {
			return p, errors.Newf(errors.ErrInvalidArgument, "field %q cannot be updated", field)
		}
		doc[field] = value
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return p, errors.Wrap(err, "encoding patched product")
	}
	var out Product
	if err := json.Unmarshal(merged, &out); err != nil {
		return p, errors.WithCode(err, errors.ErrInvalidArgument, "invalid field value")
	}
	if !out.Status.Valid() {
		return p, errors.Newf(errors.ErrInvalidArgument, "unknown status %q", out.Status)
	}
	return out, nil
}

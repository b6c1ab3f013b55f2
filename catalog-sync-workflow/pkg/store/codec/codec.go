// =============================================================================
// pkg/store/codec/codec.go - On-Disk Encodings for the Embedded Store
// =============================================================================
//
// KEY LAYOUT (RocksDB):
//
//	history CF:  <source> 0x00 <seq:8 bytes big-endian>   → ledger row
//	products CF: <code>                                   → product value
//	default CF:  "meta:history_seq"                       → last seq (8 bytes BE)
//	             "meta:history_latest"                    → ledger row
//
// Sequence numbers are global, so the newest row of a source is the last key
// under its prefix and the newest row overall is the highest seq.
//
// VALUE FORMATS:
//
//	ledger row:  protobuf wire format, fields 1=source 2=offset 3=quantity
//	             4=date (unix nanoseconds) 5=seq
//	product:     zstd-compressed JSON
//
// =============================================================================

package codec

import (
	"encoding/json"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// KeyHistorySeq holds the last assigned ledger sequence number
	KeyHistorySeq = "meta:history_seq"

	// KeyHistoryLatest holds the most recently written ledger row
	KeyHistoryLatest = "meta:history_latest"
)

const (
	fieldSource   protowire.Number = 1
	fieldOffset   protowire.Number = 2
	fieldQuantity protowire.Number = 3
	fieldDate     protowire.Number = 4
	fieldSeq      protowire.Number = 5
)

// =============================================================================
// Ledger Rows
// =============================================================================

// HistoryRecord is a ledger row with its store sequence number.
type HistoryRecord struct {
	types.ImportHistory
	Seq uint64
}

// EncodeHistory serializes a ledger row.
func EncodeHistory(rec HistoryRecord) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSource, protowire.BytesType)
	b = protowire.AppendString(b, rec.Source)
	b = protowire.AppendTag(b, fieldOffset, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Offset))
	b = protowire.AppendTag(b, fieldQuantity, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Quantity))
	b = protowire.AppendTag(b, fieldDate, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(rec.Date.UnixNano()))
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, rec.Seq)
	return b
}

// DecodeHistory parses a ledger row. Unknown fields are skipped.
func DecodeHistory(b []byte) (HistoryRecord, error) {
	var rec HistoryRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, errors.Wrap(protowire.ParseError(n), "history row tag")
		}
		b = b[n:]

		switch {
		case num == fieldSource && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return rec, errors.Wrap(protowire.ParseError(m), "history row source")
			}
			rec.Source = v
			n = m
		case typ == protowire.VarintType && num >= fieldOffset && num <= fieldSeq:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return rec, errors.Wrap(protowire.ParseError(m), "history row field")
			}
			switch num {
			case fieldOffset:
				rec.Offset = int64(v)
			case fieldQuantity:
				rec.Quantity = int(v)
			case fieldDate:
				rec.Date = time.Unix(0, protowire.DecodeZigZag(v)).UTC()
			case fieldSeq:
				rec.Seq = v
			}
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return rec, errors.Wrap(protowire.ParseError(m), "history row unknown field")
			}
			n = m
		}
		b = b[n:]
	}
	return rec, nil
}

// HistoryPrefix returns the key prefix of every row of source.
func HistoryPrefix(source string) []byte {
	p := make([]byte, 0, len(source)+1)
	p = append(p, source...)
	return append(p, 0)
}

// HistoryKey returns the key of row seq of source.
func HistoryKey(source string, seq uint64) []byte {
	return append(HistoryPrefix(source), helpers.Uint64ToBytes(seq)...)
}

// HistoryUpperBound returns the smallest key greater than every key of source.
func HistoryUpperBound(source string) []byte {
	p := make([]byte, 0, len(source)+1)
	p = append(p, source...)
	return append(p, 1)
}

// =============================================================================
// Products
// =============================================================================

// ProductCodec encodes product values as zstd-compressed JSON. An encoder and
// decoder are created once and reused; both are safe for concurrent use via
// EncodeAll/DecodeAll.
type ProductCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewProductCodec creates a ProductCodec.
func NewProductCodec() (*ProductCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd encoder")
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, errors.Wrap(err, "failed to create zstd decoder")
	}
	return &ProductCodec{encoder: encoder, decoder: decoder}, nil
}

// Encode serializes p.
func (c *ProductCodec) Encode(p types.Product) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding product %s", p.Code)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode parses a value written by Encode.
func (c *ProductCodec) Decode(b []byte) (types.Product, error) {
	var p types.Product
	raw, err := c.decoder.DecodeAll(b, nil)
	if err != nil {
		return p, errors.Wrap(err, "decompressing product")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errors.Wrap(err, "decoding product")
	}
	return p, nil
}

// Close releases the encoder and decoder.
func (c *ProductCodec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/lynnlangit/gcp-variant-transforms/internal/vcf"
)

type ParquetEncodeResult struct {
	Data        []byte
	RecordCount int64
}

// variantRow is the destination table schema. Column names must line up with
// the aliases assertion queries reference (start_position, end_position and
// friends).
type variantRow struct {
	ReferenceName  string  `parquet:"reference_name"`
	StartPosition  int64   `parquet:"start_position"`
	EndPosition    int64   `parquet:"end_position"`
	ReferenceBases string  `parquet:"reference_bases"`
	AlternateBases string  `parquet:"alternate_bases"`
	Names          *string `parquet:"names,optional"`
	Quality        float64 `parquet:"quality"`
	Filters        *string `parquet:"filters,optional"`
	CallCount      int64   `parquet:"call_count"`
	CallsJSON      string  `parquet:"calls_json"`
}

// EncodeVariantsToParquet encodes merged variants as one parquet data file.
func EncodeVariantsToParquet(variants []vcf.Variant) (ParquetEncodeResult, error) {
	if len(variants) == 0 {
		return ParquetEncodeResult{}, fmt.Errorf("variants are required")
	}

	rows := make([]variantRow, 0, len(variants))
	for _, variant := range variants {
		callsJSON, err := json.Marshal(variant.Calls)
		if err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("marshal calls for %q: %w", variant.Key(), err)
		}
		rows = append(rows, variantRow{
			ReferenceName:  variant.ReferenceName,
			StartPosition:  variant.StartPosition,
			EndPosition:    variant.EndPosition,
			ReferenceBases: variant.ReferenceBases,
			AlternateBases: variant.AlternateBases,
			Names:          optionalString(variant.Names),
			Quality:        variant.Quality,
			Filters:        optionalString(variant.Filters),
			CallCount:      int64(len(variant.Calls)),
			CallsJSON:      string(callsJSON),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[variantRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
	}, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

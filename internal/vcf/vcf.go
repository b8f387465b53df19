package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Variant is one data line of a VCF file in the shape the pipeline loads into
// the destination table. StartPosition is 1-based; EndPosition is
// StartPosition plus the reference allele length, unless the INFO field
// carries an explicit END override.
type Variant struct {
	ReferenceName  string
	StartPosition  int64
	EndPosition    int64
	ReferenceBases string
	AlternateBases string
	Names          string
	Quality        float64
	Filters        string
	Calls          []Call
}

// Call is one sample genotype column of a variant line.
type Call struct {
	SampleName string
	Data       string
}

// Key identifies variants that describe the same site and alleles. Merge
// strategies collapse rows sharing a key.
func (v Variant) Key() string {
	return strings.Join([]string{
		v.ReferenceName,
		strconv.FormatInt(v.StartPosition, 10),
		strconv.FormatInt(v.EndPosition, 10),
		v.ReferenceBases,
		v.AlternateBases,
	}, "|")
}

const fixedFieldCount = 8

// Read parses a VCF stream: meta lines (##) are skipped, the #CHROM header
// supplies sample names, and each data line becomes one Variant. A malformed
// line fails with its line number.
func Read(r io.Reader) ([]Variant, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var samples []string
	var sawHeader bool
	variants := make([]Variant, 0)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fields := strings.Split(line, "\t")
			if len(fields) > fixedFieldCount+1 {
				samples = fields[fixedFieldCount+1:]
			}
			sawHeader = true
			continue
		}
		if !sawHeader {
			return nil, fmt.Errorf("line %d: data line before #CHROM header", lineNo)
		}
		variant, err := parseDataLine(line, samples)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		variants = append(variants, variant)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vcf: %w", err)
	}
	return variants, nil
}

func parseDataLine(line string, samples []string) (Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < fixedFieldCount {
		return Variant{}, fmt.Errorf("expected at least %d columns, got %d", fixedFieldCount, len(fields))
	}

	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Variant{}, fmt.Errorf("invalid POS %q: %w", fields[1], err)
	}

	variant := Variant{
		ReferenceName:  fields[0],
		StartPosition:  start,
		ReferenceBases: fields[3],
		AlternateBases: emptyIfMissing(fields[4]),
		Names:          emptyIfMissing(fields[2]),
		Filters:        emptyIfMissing(fields[6]),
	}

	if quality := emptyIfMissing(fields[5]); quality != "" {
		parsed, err := strconv.ParseFloat(quality, 64)
		if err != nil {
			return Variant{}, fmt.Errorf("invalid QUAL %q: %w", fields[5], err)
		}
		variant.Quality = parsed
	}

	variant.EndPosition = start + int64(len(variant.ReferenceBases))
	if end, ok := infoEnd(fields[7]); ok {
		variant.EndPosition = end
	}

	if len(fields) > fixedFieldCount+1 {
		callFields := fields[fixedFieldCount+1:]
		variant.Calls = make([]Call, 0, len(callFields))
		for i, data := range callFields {
			name := fmt.Sprintf("sample_%d", i)
			if i < len(samples) {
				name = samples[i]
			}
			variant.Calls = append(variant.Calls, Call{SampleName: name, Data: data})
		}
	}

	return variant, nil
}

func infoEnd(info string) (int64, bool) {
	for _, entry := range strings.Split(info, ";") {
		if value, ok := strings.CutPrefix(entry, "END="); ok {
			end, err := strconv.ParseInt(value, 10, 64)
			if err == nil {
				return end, true
			}
		}
	}
	return 0, false
}

func emptyIfMissing(value string) string {
	if value == "." {
		return ""
	}
	return value
}

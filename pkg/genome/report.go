// Package genome reads consumer genotype reports and matches their calls
// against SNPedia genotype tables.
package genome

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

// Format identifies the layout of a genotype report
type Format string

const (
	Format23andMe Format = "23andme"
	FormatVCF     Format = "vcf"
)

const maxLineBytes = 1024 * 1024

// Call is one genotyped position from a report
type Call struct {
	VariantID  string   `json:"variant_id"`
	Chromosome string   `json:"chromosome"`
	Position   int64    `json:"position"`
	Alleles    []string `json:"alleles"`
}

// SNPediaGenotype renders the call the way SNPedia tables do, e.g. "(A;G)".
// Haploid calls render as "(A)".
func (c Call) SNPediaGenotype() string {
	alleles := append([]string{}, c.Alleles...)
	sort.Strings(alleles)
	return "(" + strings.Join(alleles, ";") + ")"
}

// Report is a parsed genotype report
type Report struct {
	Format  Format `json:"format"`
	Calls   []Call `json:"calls"`
	Skipped int    `json:"skipped"`
}

// VariantIDs returns the distinct canonical variant ids in report order
func (r *Report) VariantIDs() []string {
	ids := make([]string, 0, len(r.Calls))
	seen := make(map[string]bool, len(r.Calls))
	for _, call := range r.Calls {
		if seen[call.VariantID] {
			continue
		}
		seen[call.VariantID] = true
		ids = append(ids, call.VariantID)
	}
	return ids
}

// Lookup returns the call for a variant id
func (r *Report) Lookup(variantID string) (Call, bool) {
	id := domain.CanonicalVariantID(variantID)
	for _, call := range r.Calls {
		if call.VariantID == id {
			return call, true
		}
	}
	return Call{}, false
}

// ParseReport reads a 23andMe raw data file or a single-sample VCF, detected from
// the first line. No-calls and rows without a variant id are counted as skipped.
func ParseReport(r io.Reader) (*Report, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	report := &Report{Format: Format23andMe}
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first && strings.TrimSpace(line) != "" {
			first = false
			if strings.HasPrefix(line, "##fileformat=VCF") {
				report.Format = FormatVCF
			}
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			call Call
			ok   bool
		)
		if report.Format == FormatVCF {
			call, ok = parseVCFLine(line)
		} else {
			call, ok = parse23andMeLine(line)
		}
		if !ok {
			report.Skipped++
			continue
		}
		report.Calls = append(report.Calls, call)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading genotype report: %w", err)
	}
	if report.Format == Format23andMe && len(report.Calls) == 0 && report.Skipped > 0 {
		return nil, fmt.Errorf("no genotype calls recognised in %d lines", report.Skipped)
	}
	return report, nil
}

// parse23andMeLine reads "rsid chromosome position genotype"
func parse23andMeLine(line string) (Call, bool) {
	cols := strings.Fields(line)
	if len(cols) < 4 {
		return Call{}, false
	}
	id := domain.CanonicalVariantID(cols[0])
	pos, err := strconv.ParseInt(cols[2], 10, 64)
	if id == "" || err != nil {
		return Call{}, false
	}

	genotype := strings.ToUpper(cols[3])
	if genotype == "" || strings.ContainsAny(genotype, "-0") {
		return Call{}, false
	}
	alleles := make([]string, 0, len(genotype))
	for _, r := range genotype {
		alleles = append(alleles, string(r))
	}
	return Call{VariantID: id, Chromosome: cols[1], Position: pos, Alleles: alleles}, true
}

// parseVCFLine reads CHROM POS ID REF ALT QUAL FILTER INFO FORMAT SAMPLE, converting GT to letters
func parseVCFLine(line string) (Call, bool) {
	cols := strings.Split(line, "\t")
	if len(cols) < 10 {
		return Call{}, false
	}
	id := domain.CanonicalVariantID(strings.Split(cols[2], ";")[0])
	pos, err := strconv.ParseInt(cols[1], 10, 64)
	if id == "" || err != nil {
		return Call{}, false
	}

	gtIndex := -1
	for i, key := range strings.Split(cols[8], ":") {
		if key == "GT" {
			gtIndex = i
			break
		}
	}
	sample := strings.Split(cols[9], ":")
	if gtIndex < 0 || gtIndex >= len(sample) {
		return Call{}, false
	}

	bases := append([]string{strings.ToUpper(cols[3])}, strings.Split(strings.ToUpper(cols[4]), ",")...)
	var alleles []string
	for _, idx := range strings.FieldsFunc(sample[gtIndex], func(r rune) bool { return r == '/' || r == '|' }) {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 || n >= len(bases) || bases[n] == "." {
			return Call{}, false
		}
		alleles = append(alleles, bases[n])
	}
	if len(alleles) == 0 {
		return Call{}, false
	}
	return Call{
		VariantID:  id,
		Chromosome: strings.TrimPrefix(cols[0], "chr"),
		Position:   pos,
		Alleles:    alleles,
	}, true
}

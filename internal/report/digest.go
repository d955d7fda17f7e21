//nolint:tagliatelle
package report

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/types"
)

const (
	maxLineSize = 4 * 1024 * 1024
	extremes    = 5
)

// DigestRecord holds the typed fields of a report line needed by the digest.
type DigestRecord struct {
	File     string          `json:"file,omitempty"`
	Analysis *DigestAnalysis `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type DigestAnalysis struct {
	Summary  DigestSummary   `json:"summary"`
	Issues   []DigestIssue   `json:"issues"`
	Loudness *DigestLoudness `json:"loudness,omitempty"`
}

type DigestSummary struct {
	IssueCount    int    `json:"issue_count"`
	WorstSeverity string `json:"worst_severity"`
	Platform      string `json:"platform"`
}

type DigestIssue struct {
	Check      string  `json:"check"`
	Detected   bool    `json:"detected"`
	Severity   string  `json:"severity"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// DigestLoudness keeps integrated loudness as written: a number, or "N/A".
type DigestLoudness struct {
	IntegratedLUFS any `json:"integrated_lufs"`
}

// Integrated returns the integrated loudness, or false when unmeasurable or absent.
func (r *DigestRecord) Integrated() (float64, bool) {
	if r.Analysis == nil || r.Analysis.Loudness == nil {
		return 0, false
	}

	v, ok := r.Analysis.Loudness.IntegratedLUFS.(float64)

	return v, ok
}

// ReadReport opens a report, decompressing by extension, and returns typed records next to
// the raw lines. Lines that fail to parse become failed records.
func ReadReport(path string) ([]DigestRecord, [][]byte, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified report files
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening report: %w", fault.ErrReadFailure, err)
	}
	defer file.Close()

	reader, err := CompressionFromPath(path).NewReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer reader.Close()

	return ReadRecords(reader)
}

// ReadRecords parses JSON lines.
func ReadRecords(r io.Reader) ([]DigestRecord, [][]byte, error) {
	var (
		records []DigestRecord
		lines   [][]byte
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		line := slices.Clone(scanner.Bytes())
		lines = append(lines, line)

		var rec DigestRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			records = append(records, DigestRecord{Error: "parse error"})

			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: reading report: %w", fault.ErrReadFailure, err)
	}

	return records, lines, nil
}

// CheckBreakdown tracks per-check severity counts.
type CheckBreakdown struct {
	Check    string
	Total    int
	Severe   int
	Moderate int
	Mild     int
}

// FileLevel pairs a file with its integrated loudness.
type FileLevel struct {
	File string
	LUFS float64
}

// Digest summarizes a report.
type Digest struct {
	Total    int
	Failed   int
	Analyzed int

	Severity      map[string]int // clean, mild, moderate, severe
	IssuesPerFile map[int]int
	Checks        []*CheckBreakdown

	Measured     int
	Unmeasurable int
	MinLUFS      float64
	MedianLUFS   float64
	MaxLUFS      float64
	Loudest      []FileLevel
	Quietest     []FileLevel
}

// Summarize computes the digest of records.
func Summarize(records []DigestRecord) *Digest {
	digest := &Digest{
		Total:         len(records),
		Severity:      map[string]int{"severe": 0, "moderate": 0, "mild": 0, "clean": 0},
		IssuesPerFile: map[int]int{},
	}

	checkStats := map[string]*CheckBreakdown{}

	var levels []FileLevel

	for i := range records {
		rec := &records[i]
		if rec.Error != "" || rec.Analysis == nil {
			digest.Failed++

			continue
		}

		worst := rec.Analysis.Summary.WorstSeverity
		if worst == "" || worst == "no issue" {
			digest.Severity["clean"]++
		} else {
			digest.Severity[worst]++
		}

		digest.IssuesPerFile[rec.Analysis.Summary.IssueCount]++

		for _, issue := range rec.Analysis.Issues {
			if !issue.Detected {
				continue
			}

			breakdown, ok := checkStats[issue.Check]
			if !ok {
				breakdown = &CheckBreakdown{Check: issue.Check}
				checkStats[issue.Check] = breakdown
			}

			breakdown.Total++

			switch issue.Severity {
			case "severe":
				breakdown.Severe++
			case "moderate":
				breakdown.Moderate++
			case "mild":
				breakdown.Mild++
			}
		}

		if lufs, ok := rec.Integrated(); ok {
			levels = append(levels, FileLevel{File: displayName(rec.File), LUFS: lufs})
		} else {
			digest.Unmeasurable++
		}
	}

	digest.Analyzed = digest.Total - digest.Failed

	for _, breakdown := range checkStats {
		digest.Checks = append(digest.Checks, breakdown)
	}

	slices.SortFunc(digest.Checks, func(a, b *CheckBreakdown) int {
		if a.Total != b.Total {
			return b.Total - a.Total
		}

		return cmp.Compare(a.Check, b.Check)
	})

	digest.Measured = len(levels)
	if len(levels) == 0 {
		digest.MinLUFS = types.Unmeasurable()
		digest.MedianLUFS = types.Unmeasurable()
		digest.MaxLUFS = types.Unmeasurable()

		return digest
	}

	slices.SortStableFunc(levels, func(a, b FileLevel) int {
		return cmp.Compare(a.LUFS, b.LUFS)
	})

	digest.MinLUFS = levels[0].LUFS
	digest.MaxLUFS = levels[len(levels)-1].LUFS
	digest.MedianLUFS = median(levels)

	n := min(extremes, len(levels))
	digest.Quietest = slices.Clone(levels[:n])
	digest.Loudest = slices.Clone(levels[len(levels)-n:])
	slices.Reverse(digest.Loudest)

	return digest
}

func median(sorted []FileLevel) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid].LUFS
	}

	return (sorted[mid-1].LUFS + sorted[mid].LUFS) / 2
}

func displayName(file string) string {
	if file == "" {
		return "(redacted)"
	}

	return file
}

// Print writes the digest as plain text.
func (d *Digest) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Auricle Report Digest ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total files:   %d\n", d.Total)
	fmt.Fprintf(w, "Failed:        %d\n", d.Failed)
	fmt.Fprintf(w, "Analyzed:      %d\n", d.Analyzed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Worst Severity ---")
	fmt.Fprintf(w, "  Clean:     %d\n", d.Severity["clean"])
	fmt.Fprintf(w, "  Mild:      %d\n", d.Severity["mild"])
	fmt.Fprintf(w, "  Moderate:  %d\n", d.Severity["moderate"])
	fmt.Fprintf(w, "  Severe:    %d\n", d.Severity["severe"])
	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Issues Per File ---")

	counts := make([]int, 0, len(d.IssuesPerFile))
	for k := range d.IssuesPerFile {
		counts = append(counts, k)
	}

	slices.Sort(counts)

	for _, k := range counts {
		fmt.Fprintf(w, "  %d issues:  %d files\n", k, d.IssuesPerFile[k])
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Issues By Type ---")

	for _, bd := range d.Checks {
		fmt.Fprintf(w, "  %s\n", bd.Check)
		fmt.Fprintf(w, "    total: %d  severe: %d  moderate: %d  mild: %d\n", bd.Total, bd.Severe, bd.Moderate, bd.Mild)
	}

	fmt.Fprintln(w)

	fmt.Fprintln(w, "--- Integrated Loudness ---")
	fmt.Fprintf(w, "  Measured:      %d (%d unmeasurable)\n", d.Measured, d.Unmeasurable)
	fmt.Fprintf(w, "  Min:           %s\n", types.FormatLevel(d.MinLUFS, "LUFS"))
	fmt.Fprintf(w, "  Median:        %s\n", types.FormatLevel(d.MedianLUFS, "LUFS"))
	fmt.Fprintf(w, "  Max:           %s\n", types.FormatLevel(d.MaxLUFS, "LUFS"))

	if len(d.Loudest) > 0 {
		fmt.Fprintln(w, "  Loudest:")

		for _, fl := range d.Loudest {
			fmt.Fprintf(w, "    %s  %s\n", types.FormatLevel(fl.LUFS, "LUFS"), fl.File)
		}

		fmt.Fprintln(w, "  Quietest:")

		for _, fl := range d.Quietest {
			fmt.Fprintf(w, "    %s  %s\n", types.FormatLevel(fl.LUFS, "LUFS"), fl.File)
		}
	}
}

//nolint:gochecknoglobals
var checkDetailKey = map[string]string{
	"loudness":        "loudness",
	"target-loudness": "loudness",
	"dynamics":        "loudness",
	"peak-headroom":   "levels",
	"non-finite":      "levels",
	"spectral":        "spectral",
}

// IssueEntry is one file affected by a check.
type IssueEntry struct {
	File       string
	Severity   string
	Summary    string
	Confidence float64
	Detail     map[string]any
}

// AffectedBy lists the files where check was detected, worst first, with the matching
// analysis section pulled from the raw line.
func AffectedBy(records []DigestRecord, rawLines [][]byte, check string) []IssueEntry {
	var entries []IssueEntry

	detailKey := checkDetailKey[check]

	for idx := range records {
		rec := &records[idx]
		if rec.Error != "" || rec.Analysis == nil {
			continue
		}

		for _, issue := range rec.Analysis.Issues {
			if !issue.Detected || issue.Check != check {
				continue
			}

			entry := IssueEntry{
				File:       displayName(rec.File),
				Severity:   issue.Severity,
				Summary:    issue.Summary,
				Confidence: issue.Confidence,
			}

			if detailKey != "" && idx < len(rawLines) {
				entry.Detail = extractDetail(rawLines[idx], detailKey)
			}

			entries = append(entries, entry)
		}
	}

	slices.SortStableFunc(entries, func(a, b IssueEntry) int {
		return severityRank(a.Severity) - severityRank(b.Severity)
	})

	return entries
}

// PrintIssueDetail writes the files affected by check.
func PrintIssueDetail(w io.Writer, records []DigestRecord, rawLines [][]byte, check string) {
	fmt.Fprintln(w)

	entries := AffectedBy(records, rawLines, check)
	if len(entries) == 0 {
		fmt.Fprintf(w, "No files affected by %s\n", check)

		return
	}

	fmt.Fprintf(w, "=== %s: %d files ===\n\n", check, len(entries))

	for _, entry := range entries {
		fmt.Fprintf(w, "  %s\n", entry.File)
		fmt.Fprintf(w, "    severity: %s  confidence: %.0f%%\n", entry.Severity, entry.Confidence*100)
		fmt.Fprintf(w, "    %s\n", entry.Summary)

		keys := make([]string, 0, len(entry.Detail))
		for key := range entry.Detail {
			keys = append(keys, key)
		}

		slices.Sort(keys)

		for _, key := range keys {
			fmt.Fprintf(w, "    %s: %s\n", key, formatDetailValue(entry.Detail[key]))
		}

		fmt.Fprintln(w)
	}
}

func extractDetail(rawLine []byte, key string) map[string]any {
	var full struct {
		Analysis map[string]any `json:"analysis"`
	}

	if err := json.Unmarshal(rawLine, &full); err != nil || full.Analysis == nil {
		return nil
	}

	if detail, ok := full.Analysis[key].(map[string]any); ok {
		return detail
	}

	return nil
}

func severityRank(severity string) int {
	switch severity {
	case "severe":
		return 0
	case "moderate":
		return 1
	case "mild":
		return 2
	default:
		return 3
	}
}

func formatDetailValue(value any) string {
	switch val := value.(type) {
	case []any:
		return fmt.Sprintf("%d entries", len(val))
	case string:
		return val
	default:
		return fmt.Sprintf("%v", value)
	}
}

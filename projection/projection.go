package projection

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/eino-contrib/jsonschema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/tbxark/intakeagent/types"
)

// Project derives the output record. It is pure: equal inputs give equal records.
// analysis and recs may be nil.
func Project(answers types.AnswerMap, analysis *types.Analysis, recs *types.Recommendations) OutputRecord {
	record := OutputRecord{SchemaVersion: SchemaVersion}
	for _, r := range rules {
		r.Set(&record, r.resolve(answers, analysis, recs))
	}
	return record
}

// JSONSchema describes OutputRecord.
func JSONSchema() (string, error) {
	schema := jsonschema.Reflect(&OutputRecord{})
	schema.Title = "Use case intake record"
	schema.Description = "Structured result of a completed use case intake interview."
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return string(data), nil
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records ...OutputRecord) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, 32)
	for _, f := range (OutputRecord{}).Fields() {
		header = append(header, f[0])
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		fields := r.Fields()
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = f[1]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatMarkdown renders the record as a two-column markdown table.
func FormatMarkdown(r OutputRecord) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Value")
	for _, f := range r.Fields() {
		_ = table.Append(f[0], strings.ReplaceAll(f[1], "\n", " "))
	}
	_ = table.Render()
	return buf.String()
}

package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jigna-sync/jigna-go/pkg/log"
)

// RunExport writes the events matching opts as JSON lines or CSV to
// output, or to stdout when output is empty.
func RunExport(path, format, output string, opts Options) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

var csvHeader = []string{"timestamp", "session_id", "connection_id", "direction", "layer", "category", "type", "model_id", "attribute", "detail"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		modelID, attr, detail := csvDetails(event)
		row := []string{
			event.Timestamp.UTC().Format(timestampFormat),
			event.SessionID,
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			strings.ToLower(eventType(event)),
			modelID,
			attr,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvDetails(event log.Event) (modelID, attr, detail string) {
	switch {
	case event.Edit != nil:
		return event.Edit.ModelID, event.Edit.Attribute, event.Edit.Value
	case event.Notify != nil:
		return event.Notify.ModelID, event.Notify.Attribute, strings.Join(event.Notify.Excluded, " ")
	case event.Drop != nil:
		return event.Drop.ModelID, event.Drop.Attribute, event.Drop.Reason.String()
	case event.StateChange != nil:
		return "", "", event.StateChange.NewState
	case event.Error != nil:
		return "", "", event.Error.Message
	}
	return "", "", ""
}

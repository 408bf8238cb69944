package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/tbxark/intakeagent/interview"
	"github.com/tbxark/intakeagent/persist"
	"github.com/tbxark/intakeagent/projection"
	"github.com/tbxark/intakeagent/types"
)

var resumeID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start or resume an interview on the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer func() {
			if cErr := a.Close(context.Background()); cErr != nil {
				a.logger.Error("close store", "error", cErr)
			}
		}()
		return runInterview(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().StringVar(&resumeID, "resume", "", "id of a session to resume")
}

func runInterview(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	var first *interview.Response
	var err error
	if resumeID != "" {
		first, err = a.engine.Turn(ctx, resumeID, "resume")
	} else {
		first, err = a.engine.Start(ctx)
	}
	if err != nil {
		return err
	}
	sessionID := first.SessionID
	_, _ = fmt.Fprintf(out, "Session %s\nAssistant: %s\n", sessionID, first.Message)

	agent := interview.NewAgent("IntakeInterviewer", "Interviews a submitter about a business use case", a.engine)
	runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: agent})
	chatCtx := interview.WithSessionID(ctx, sessionID)
	reader := bufio.NewReader(in)
	for {
		_, _ = fmt.Fprint(out, "You: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			_, _ = fmt.Fprintln(out, "\nInput closed, your progress is saved.")
			return nil
		}
		input = strings.TrimSpace(input)
		iter := runner.Run(chatCtx, []adk.Message{schema.UserMessage(input)})
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return event.Err
			}
			msg, mErr := event.Output.MessageOutput.GetMessage()
			if mErr != nil {
				return mErr
			}
			_, _ = fmt.Fprintf(out, "Assistant: %s  [%v%%]\n", msg.Content, msg.Extra["progress"])
		}

		state, sErr := a.store.Get(ctx, sessionID)
		if sErr != nil {
			return sErr
		}
		switch state.Status {
		case types.StatusCompleted:
			record, fErr := a.engine.Finalize(ctx, sessionID)
			if fErr != nil {
				return fErr
			}
			_, _ = fmt.Fprintln(out, projection.FormatMarkdown(record))
			return nil
		case types.StatusAbandoned, types.StatusPaused:
			return nil
		}
	}
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the output record",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := projection.JSONSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
		return err
	},
}

var (
	exportSession string
	exportFormat  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a session as an output record or as its persisted form",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if exportSession == "" {
			return errors.New("--session is required")
		}
		ctx := cmd.Context()
		a, err := openApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.Background()) }()
		return export(ctx, a, cmd.OutOrStdout())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSession, "session", "", "session id")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json, csv, markdown or session")
}

func export(ctx context.Context, a *app, out io.Writer) error {
	if exportFormat == "session" {
		ps, err := a.store.Export(ctx, exportSession)
		if err != nil {
			return err
		}
		data, err := persist.Encode([]types.PersistedSession{ps}, time.Now())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	record, err := a.engine.Finalize(ctx, exportSession)
	if err != nil {
		return err
	}
	switch exportFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	case "csv":
		return projection.WriteCSV(out, record)
	case "markdown":
		_, err = fmt.Fprintln(out, projection.FormatMarkdown(record))
		return err
	default:
		return fmt.Errorf("unknown export format %q", exportFormat)
	}
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.Background()) }()

		table := tablewriter.NewTable(cmd.OutOrStdout())
		table.Header("Session", "Status", "Progress", "Last activity")
		if db, ok := a.persister.(*persist.SQLite); ok {
			sums, err := db.Summaries(ctx)
			if err != nil {
				return err
			}
			for _, s := range sums {
				_ = table.Append(s.SessionID, string(s.Status), strconv.Itoa(s.Progress)+"%", s.UpdatedAt.Format(time.RFC3339))
			}
			return table.Render()
		}
		for _, s := range a.store.List(ctx) {
			_ = table.Append(s.SessionID, string(s.Status), strconv.Itoa(s.ProgressPercent)+"%", s.LastActivityAt.Format(time.RFC3339))
		}
		return table.Render()
	},
}

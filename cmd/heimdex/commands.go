package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex/internal/config"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a device event into the store",
	Long: `Ingest a device event into the store.

Examples:
  heimdex ingest --device hue.0.living.light --event-type on --value true \
    --data-type boolean --description "Living room light" --location "living room"
  heimdex ingest --file ./events.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		device, _ := cmd.Flags().GetString("device")
		eventType, _ := cmd.Flags().GetString("event-type")
		value, _ := cmd.Flags().GetString("value")
		dataType, _ := cmd.Flags().GetString("data-type")
		description, _ := cmd.Flags().GetString("description")
		location, _ := cmd.Flags().GetString("location")
		timestamp, _ := cmd.Flags().GetInt64("timestamp")

		if file == "" && (device == "" || eventType == "" || value == "" || dataType == "" || description == "") {
			return fmt.Errorf("--device, --event-type, --value, --data-type, and --description are required (or use --file)")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if file != "" {
			return ingestFile(client, file)
		}

		req := map[string]any{
			"device_name":                device,
			"event_type":                 eventType,
			"data_type":                  dataType,
			"human_readable_description": description,
		}
		if json.Valid([]byte(value)) {
			req["value"] = json.RawMessage(value)
		} else {
			req["value"] = value
		}
		if location != "" {
			req["location"] = location
		}
		if timestamp != 0 {
			req["timestamp"] = timestamp
		}

		resp, err := client.post("/iobroker-event", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Stored event %s", result["doc_id"])
		return nil
	},
}

func ingestFile(client *apiClient, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	// A file holds either one event object or an array of them.
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		resp, err := client.post("/iobroker-events", json.RawMessage(data))
		if err != nil {
			return err
		}
		var result struct {
			Stored  int `json:"stored"`
			Results []struct {
				Index int    `json:"index"`
				DocID string `json:"doc_id"`
				Error string `json:"error"`
			} `json:"results"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		for _, r := range result.Results {
			if r.Error != "" {
				printError("event %d: %s", r.Index, r.Error)
			}
		}
		printSuccess("Stored %d of %d events", result.Stored, len(result.Results))
		return nil
	}

	resp, err := client.post("/iobroker-event", json.RawMessage(data))
	if err != nil {
		return err
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}
	printSuccess("Stored event %s", result["doc_id"])
	return nil
}

func init() {
	ingestCmd.Flags().String("device", "", "device identifier, e.g. hue.0.living.light")
	ingestCmd.Flags().String("event-type", "", "event description from the device, e.g. on, off, motion")
	ingestCmd.Flags().String("value", "", "raw value (JSON or plain string)")
	ingestCmd.Flags().String("data-type", "", "one of boolean, number, string, mixed")
	ingestCmd.Flags().String("description", "", "human readable device description")
	ingestCmd.Flags().String("location", "", "room or area of the device")
	ingestCmd.Flags().Int64("timestamp", 0, "event time in milliseconds since epoch")
	ingestCmd.Flags().String("file", "", "JSON file with one event object or an array of events")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question about the recorded events",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/tools/get_iobroker_data_answer", map[string]string{
			"user_query": question,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["answer"])
		return nil
	},
}

// --- events ---

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recently ingested events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/events?limit=%d", limit))
		if err != nil {
			return err
		}

		var result struct {
			Events []struct {
				DocID      string `json:"doc_id"`
				DeviceName string `json:"device_name"`
				Text       string `json:"text"`
			} `json:"events"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Events) == 0 {
			fmt.Println("no events stored")
			return nil
		}
		for _, e := range result.Events {
			fmt.Printf("%s  %s\n", colorize(colorBold, e.DeviceName), e.Text)
		}
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent question/answer exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var result struct {
			Interactions []struct {
				Question    string `json:"question"`
				Answer      string `json:"answer"`
				Status      string `json:"status"`
				ContextDocs int    `json:"context_docs"`
			} `json:"interactions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Interactions) == 0 {
			fmt.Println("no interactions recorded")
			return nil
		}
		for _, in := range result.Interactions {
			fmt.Printf("%s %s\n", colorize(colorBold, "Q:"), in.Question)
			fmt.Printf("%s %s (%s, %d docs)\n\n", colorize(colorBold, "A:"), in.Answer, in.Status, in.ContextDocs)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "maximum number of events to list")
	historyCmd.Flags().Int("limit", 10, "maximum number of exchanges to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgeworks/issuepilot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change pipeline settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all settings with defaults applied",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := config.NewStore(stateDir)
		doc := effectiveConfig(store)

		if len(args) == 1 {
			v, ok := doc[args[0]]
			if !ok {
				return fmt.Errorf("unknown config key %q", args[0])
			}
			fmt.Println(formatValue(v))
			return nil
		}

		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %s\n", k, formatValue(doc[k]))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one setting",
	Long: `Set one setting in the project's config document. Values are parsed
as JSON when possible (true, 0.8, ["auto-fix","bug"]); anything else is
stored as a string. Keys this version does not recognize are stored
verbatim and preserved across saves.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := config.NewStore(stateDir)
		return store.SetValue(args[0], parseValue(args[1]))
	},
}

// effectiveConfig overlays the on-disk document onto both pipelines'
// defaults so unset keys show their effective values.
func effectiveConfig(store *config.Store) map[string]interface{} {
	doc := make(map[string]interface{})
	for _, cfg := range []interface{}{store.LoadTriage(), store.LoadAutoFix()} {
		data, _ := json.Marshal(cfg)
		var keys map[string]interface{}
		_ = json.Unmarshal(data, &keys)
		for k, v := range keys {
			doc[k] = v
		}
	}
	// Unrecognized keys from the document still show up.
	for k, v := range store.Raw() {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
	return doc
}

// parseValue interprets the CLI value as JSON where possible.
func parseValue(s string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimSpace(string(data))
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"io"
	"strings"
)

// --------------------------------------------------------------------------
// Output formats
// --------------------------------------------------------------------------

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

var (
	keyColor   = color.New(color.FgCyan)
	nullColor  = color.New(color.Faint)
	errorColor = color.New(color.FgRed, color.Bold)
)

// SetupOutputFlags adds --output and --field to a command
func SetupOutputFlags(cmd *cobra.Command) {
	key := "output"
	cmd.PersistentFlags().StringP(key, "o", string(OutputText), WrapString("Output format of results (text, json, yaml)"))

	key = "field"
	cmd.PersistentFlags().String(key, "", WrapString("Only print the part of the result selected by this gjson path (e.g. 'options.#.tally' or 'attributes.#(key==\"action\").value')"))
}

// ParseOutputFormat accepts the names used on the command line
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	case OutputYAML:
		return OutputYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q, must be text, json or yaml", s)
	}
}

// Print writes v to w in the format and with the field selection configured via viper
func Print(w io.Writer, v any) error {
	format, err := ParseOutputFormat(viper.GetString("output"))
	if err != nil {
		return err
	}
	return Write(w, v, format, viper.GetString("field"))
}

// PrintError writes err in the error color
func PrintError(w io.Writer, err error) {
	_, _ = errorColor.Fprintf(w, "error: %v\n", err)
}

// Write renders v as format. A non empty field selects a part of v with a gjson path.
func Write(w io.Writer, v any, format OutputFormat, field string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if field != "" {
		res := gjson.GetBytes(raw, field)
		if !res.Exists() {
			return fmt.Errorf("field %q not found in result", field)
		}
		raw = []byte(res.Raw)
	}

	switch format {
	case OutputJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err = w.Write(buf.Bytes())
		return err
	case OutputYAML:
		out, err := yaml.JSONToYAML(raw)
		if err != nil {
			return fmt.Errorf("failed to convert result to yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		var sb strings.Builder
		writeText(&sb, gjson.ParseBytes(raw), 0)
		_, err = io.WriteString(w, sb.String())
		return err
	}
}

// writeText renders a json value as indented "key: value" lines
func writeText(sb *strings.Builder, res gjson.Result, depth int) {
	indent := strings.Repeat("  ", depth)

	switch {
	case res.IsObject():
		res.ForEach(func(key, value gjson.Result) bool {
			sb.WriteString(indent)
			sb.WriteString(keyColor.Sprint(key.String()))
			sb.WriteString(":")
			if isNested(value) {
				sb.WriteString("\n")
				writeText(sb, value, depth+1)
			} else {
				sb.WriteString(" ")
				sb.WriteString(scalar(value))
				sb.WriteString("\n")
			}
			return true
		})
	case res.IsArray():
		items := res.Array()
		if len(items) == 0 {
			sb.WriteString(indent)
			sb.WriteString(nullColor.Sprint("(none)"))
			sb.WriteString("\n")
		}
		for _, item := range items {
			sb.WriteString(indent)
			sb.WriteString("-")
			if isNested(item) {
				sb.WriteString("\n")
				writeText(sb, item, depth+1)
			} else {
				sb.WriteString(" ")
				sb.WriteString(scalar(item))
				sb.WriteString("\n")
			}
		}
	default:
		sb.WriteString(indent)
		sb.WriteString(scalar(res))
		sb.WriteString("\n")
	}
}

func isNested(res gjson.Result) bool {
	return res.IsObject() || (res.IsArray() && len(res.Array()) > 0)
}

func scalar(res gjson.Result) string {
	switch {
	case res.Type == gjson.Null:
		return nullColor.Sprint("null")
	case res.IsArray():
		return nullColor.Sprint("[]")
	default:
		return res.String()
	}
}

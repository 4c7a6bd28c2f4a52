package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// PostOptions holds flags for the post command.
type PostOptions struct {
	Params []string
	JSON   string
}

// NewPostCommand creates the post command.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{}

	cmd := &cobra.Command{
		Use:   "post <event-name>",
		Short: "Append an event and wake the consumer",
		Long: `Append one event to the shared cache and raise the tracking request
signal, as an extension process would.

Parameters given with --param are typed: integers, floats and booleans
are parsed, anything else is a string. --json takes a whole object.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "event parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.JSON, "json", "", "event parameters as a JSON object")

	return cmd
}

func runPost(rootOpts *RootOptions, opts *PostOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	params, err := opts.parameters()
	if err != nil {
		return formatter.Error(ExitCommandError, "invalid parameters", err)
	}

	r, err := openRelay(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	formatter.VerboseLog("posting %q to %s", name, r.Key())
	if err := r.Poster().Post(cmd.Context(), name, params); err != nil {
		return formatter.Error(ExitFailure, "post event", err)
	}

	if rootOpts.Format == "json" {
		return formatter.Success(EventView{Name: name, Parameters: params})
	}
	return formatter.Success(fmt.Sprintf("posted %s", formatEvent(EventView{Name: name, Parameters: params})))
}

func (o *PostOptions) parameters() (map[string]any, error) {
	params := make(map[string]any)
	if o.JSON != "" {
		dec := json.NewDecoder(strings.NewReader(o.JSON))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, fmt.Errorf("--json: %w", err)
		}
		for k, v := range params {
			params[k] = numbersToScalars(v)
		}
	}
	for _, p := range o.Params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--param %q: want key=value", p)
		}
		params[k] = parseScalar(v)
	}
	return params, nil
}

func parseScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// numbersToScalars replaces decoded json.Number values, at any depth, with
// int64 or float64.
func numbersToScalars(v any) any {
	switch t := v.(type) {
	case json.Number:
		return parseScalar(t.String())
	case map[string]any:
		for k, e := range t {
			t[k] = numbersToScalars(e)
		}
	case []any:
		for i, e := range t {
			t[i] = numbersToScalars(e)
		}
	}
	return v
}

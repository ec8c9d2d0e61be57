package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HugoDaniel/srcmap/internal/sourcemap"
)

func newVLQCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vlq",
		Short: "Encode and decode Base64 VLQ values",
	}
	cmd.AddCommand(newVLQEncodeCmd(g), newVLQDecodeCmd(g))
	return cmd
}

func newVLQEncodeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <ints...>",
		Short: "Encode integers as a VLQ string",
		Long: `Encode writes the Base64 VLQ digits of each integer, concatenated.
Integers may also be given comma-separated. Put negative values after "--".`,
		Example: `  srcmap vlq encode 0 0 41 4 0
  srcmap vlq encode -- 5,-3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var values []int
			for _, arg := range args {
				for _, field := range strings.Split(arg, ",") {
					field = strings.TrimSpace(field)
					if field == "" {
						continue
					}
					v, err := strconv.Atoi(field)
					if err != nil {
						return fmt.Errorf("vlq encode: %q is not an integer", field)
					}
					if err := sourcemap.CheckVLQ(v); err != nil {
						return fmt.Errorf("vlq encode: %w", err)
					}
					values = append(values, v)
				}
			}
			return g.writeOutput(cmd, sourcemap.EncodeVLQSequence(values))
		},
	}
}

func newVLQDecodeCmd(g *globalOptions) *cobra.Command {
	var segments bool

	cmd := &cobra.Command{
		Use:   "decode <string>",
		Short: "Decode a VLQ string into integers",
		Long: `Decode prints the integers of a Base64 VLQ string. With --segments the
input is read as a mappings string and the raw deltas of each segment are
printed, one line per segment, prefixed by the generated line.`,
		Example: `  srcmap vlq decode AAyCA
  srcmap vlq decode --segments 'AAAA,IAAI;ACAA'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if segments {
				return g.writeOutput(cmd, strings.TrimSuffix(decodeSegments(args[0]), "\n"))
			}
			values, err := decodeAll(args[0])
			if err != nil {
				return fmt.Errorf("vlq decode: %w", err)
			}
			return g.writeOutput(cmd, joinInts(values))
		},
	}
	cmd.Flags().BoolVar(&segments, "segments", false, "split the input into mapping lines and segments")
	return cmd
}

func decodeAll(s string) ([]int, error) {
	var values []int
	for i := 0; i < len(s); {
		v, next, err := sourcemap.DecodeVLQ(s, i)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		i = next
	}
	return values, nil
}

// decodeSegments lists the raw field deltas of every segment in a mappings
// string. Undecodable segments are shown with their error.
func decodeSegments(mappings string) string {
	var sb strings.Builder
	for line, text := range strings.Split(mappings, ";") {
		if text == "" {
			continue
		}
		for _, seg := range strings.Split(text, ",") {
			values, err := decodeAll(seg)
			if err != nil {
				fmt.Fprintf(&sb, "%d\t%s\t%v\n", line+1, seg, err)
				continue
			}
			fmt.Fprintf(&sb, "%d\t%s\t%s\n", line+1, seg, joinInts(values))
		}
	}
	return sb.String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

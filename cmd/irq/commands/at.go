package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/textsource"
	"github.com/spf13/cobra"
)

// AtOutput represents the output of the at command
type AtOutput struct {
	File     string           `json:"file"`
	Offset   int              `json:"offset"`
	Line     int              `json:"line"`
	Function *ir.FunctionInfo `json:"function"`
}

var atCmd = &cobra.Command{
	Use:   "at <file> <offset|line:col>",
	Short: "Find the function containing a position",
	Long: `Reports which function graph covers a position in an IR dump. The position
is either a character offset or a 1-based line:column pair, with columns
counted in characters. Pass --bytes to give a byte offset instead. Reported
spans are byte offsets. Positions between functions, or in the file header,
belong to no function.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}

		text, err := readDump(path)
		if err != nil {
			return err
		}
		doc := textsource.NewDocument(text)
		bytes, _ := cmd.Flags().GetBool("bytes")
		off, err := parsePosition(doc, args[1], bytes)
		if err != nil {
			return err
		}

		g, err := ws.docs.Graph(cmd.Context(), path)
		if err != nil {
			return err
		}

		out := AtOutput{File: path, Offset: off, Line: doc.LineNumber(off)}
		if i, ok := g.FunctionAt(off); ok {
			fn := g.Functions[i]
			out.Function = &fn
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(out)
		}
		if out.Function == nil {
			return fmt.Errorf("no function at offset %d (line %d) in %s", off, out.Line, path)
		}
		fmt.Printf("%s:%d: %s [%d, %d)\n", path, out.Line, out.Function.Name, out.Function.Span.Start, out.Function.Span.End)
		return nil
	},
}

// parsePosition accepts a character offset, a byte offset when bytes is set,
// or a line:col pair, and returns a byte offset.
func parsePosition(doc *textsource.Document, pos string, bytes bool) (int, error) {
	if line, col, ok := strings.Cut(pos, ":"); ok {
		l, err := strconv.Atoi(line)
		if err != nil {
			return 0, fmt.Errorf("invalid line %q", line)
		}
		c, err := strconv.Atoi(col)
		if err != nil {
			return 0, fmt.Errorf("invalid column %q", col)
		}
		off, ok := doc.Offset(l, c)
		if !ok {
			return 0, fmt.Errorf("position %d:%d is outside the document", l, c)
		}
		return off, nil
	}

	off, err := strconv.Atoi(pos)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", pos)
	}
	if bytes {
		if off < 0 || off > doc.Len() {
			return 0, fmt.Errorf("offset %d is outside the document (length %d bytes)", off, doc.Len())
		}
		return off, nil
	}
	b, ok := doc.CharOffset(off)
	if !ok {
		return 0, fmt.Errorf("offset %d is outside the document (length %d characters)", off, utf8.RuneCountInString(doc.Text()))
	}
	return b, nil
}

func init() {
	atCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	atCmd.Flags().Bool("bytes", false, "Treat the offset as a byte offset")
}

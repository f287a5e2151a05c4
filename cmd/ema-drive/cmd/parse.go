package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/spf13/cobra"
)

var parseStrict bool

var parseCmd = &cobra.Command{
	Use:   "parse <script>",
	Short: "Check a command script without sending it",
	Long: `Parse reads a script in the command language, for example "U:2;R:1.5;S:1;",
and lists its steps. Invalid tokens are reported and the command fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseStrict, "strict", false, "reject the whole script if any token is invalid")
}

func runParse(cmd *cobra.Command, args []string) error {
	alphabet, err := commands.NewAlphabet(cfg.Serial.Alphabet)
	if err != nil {
		return err
	}
	parser := commands.NewParser(alphabet)
	parser.Strict = parseStrict || cfg.Planner.StrictParsing

	script, parseErr := parser.Parse(strings.Join(args, ""))

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCODE\tACTION\tDURATION")
	for i, step := range script {
		fmt.Fprintf(w, "%d\t%c\t%s\t%s\n", i+1, alphabet.Code(step.Action), step.Action, step.Duration())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d step(s), %s total, normalized %q\n", len(script), script.TotalDuration(), script.Format(alphabet))

	var tokens *commands.ParseError
	if errors.As(parseErr, &tokens) {
		for _, token := range tokens.Tokens {
			fmt.Fprintf(out, "invalid token %d %q: %v\n", token.Index, token.Token, token.Err)
		}
	}
	return parseErr
}

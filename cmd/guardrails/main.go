// guardrails evaluates text against a SageCompass guardrails file and
// prints the verdict as JSON. Text is taken from the arguments, or from
// standard input when no arguments are given.
//
// Usage:
//
//	guardrails [--file guardrails.yaml] [--topic T]... [--keyword K]... [--strict] [text...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cleverhoods/sagecompass-sub001/internal/config"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
)

// exitNoGo is returned under --strict when the verdict is no-go.
const exitNoGo = 3

type verdict struct {
	Decision dto.Decision        `json:"decision"`
	Result   dto.GuardrailResult `json:"result"`
	Policy   string              `json:"policy,omitempty"`
}

func main() {
	code, err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) (int, error) {
	var (
		file     string
		topics   []string
		keywords []string
		strict   bool
	)

	flags := pflag.NewFlagSet("guardrails", pflag.ContinueOnError)
	flags.StringVarP(&file, "file", "f", os.Getenv("SAGECOMPASS_GUARDRAILS_FILE"), "guardrails file (YAML, JSON or JSONC)")
	flags.StringSliceVar(&topics, "topic", nil, "allowed topic, repeatable; overrides --file")
	flags.StringSliceVar(&keywords, "keyword", nil, "blocked keyword, repeatable; overrides --file")
	flags.BoolVar(&strict, "strict", false, fmt.Sprintf("exit with status %d when the decision is no-go", exitNoGo))

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, nil
		}
		return 2, err
	}

	text, err := input(flags.Args(), stdin)
	if err != nil {
		return 1, err
	}

	g, err := load(ctx, file, topics, keywords)
	if err != nil {
		return 1, err
	}

	result, err := guardrails.Check(ctx, text, g.Config, g.Policy)
	if err != nil {
		return 1, err
	}

	v := verdict{Decision: dto.DecisionFor(result), Result: result}
	if g.Policy != nil {
		v.Policy = g.Policy.Name()
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1, err
	}

	if strict && v.Decision == dto.DecisionNoGo {
		return exitNoGo, nil
	}
	return 0, nil
}

func load(ctx context.Context, file string, topics, keywords []string) (*config.Guardrails, error) {
	if len(topics) > 0 || len(keywords) > 0 {
		return &config.Guardrails{Config: guardrails.Restricted(topics, keywords)}, nil
	}
	return config.LoadGuardrails(ctx, file)
}

func input(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no text to evaluate")
	}
	return text, nil
}

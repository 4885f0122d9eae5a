package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/voxfeld/scriptgate/pipescript"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive pipescript REPL with persistent state",
	Long: `Start an interactive pipescript session.

Variables, functions, and types persist across lines, the same way slot
state persists across requests in the pool. When a config file is present
its vars, schemas, and startup scripts are loaded first.

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Run: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.scriptgate_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	historyFile, _ := cmd.Flags().GetString("history")

	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".scriptgate_history")
	}

	env, err := replEnv(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stderr, "scriptgate pipescript REPL (type 'exit' to quit, Ctrl+D to exit)")

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if err == io.EOF {
				fmt.Println()
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			break
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}
		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			break
		}

		prog, err := pipescript.Parse(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			continue
		}
		out, err := pipescript.Run(context.Background(), prog, env)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if out != nil {
			fmt.Println(pipescript.Render(out))
		}
	}
}

// replEnv seeds a persistent environment the way the pool seeds a slot.
func replEnv(configPath string) (*pipescript.Env, error) {
	env := pipescript.NewEnv()
	pipescript.CoreBundle().Install(env)

	cfg, err := loadOptionalConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return env, nil
	}

	for k, v := range cfg.Vars {
		env.Set(k, v)
	}
	bundle, err := cfg.SchemaBundle()
	if err != nil {
		return nil, err
	}
	if bundle != nil {
		bundle.Install(env)
	}
	for _, name := range cfg.Startup {
		if !filepath.IsAbs(name) {
			name = filepath.Join(cfg.Dir, name)
		}
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		prog, err := pipescript.Parse(string(src))
		if err != nil {
			return nil, err
		}
		if _, err := pipescript.Run(context.Background(), prog, env); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// shellCommands are the subcommands available inside the shell. A fresh
// tree is built per line so flag values never leak between lines.
func shellCommands(a *app) *cobra.Command {
	root := &cobra.Command{Use: "hyena", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		columnsCmd(a),
		catalogCmd(a),
		addColumnCmd(a),
		insertCmd(a),
		scanCmd(a),
		genVectorsCmd(a),
		parseMsgCmd(a),
	)
	return root
}

func shellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively over one session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.connect(); err != nil {
				return err
			}
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			line.SetCompleter(func(prefix string) []string {
				var out []string
				for _, c := range shellCommands(a).Commands() {
					if strings.HasPrefix(c.Name(), prefix) {
						out = append(out, c.Name())
					}
				}
				return out
			})

			for {
				input, err := line.Prompt("hyena> ")
				if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				input = strings.TrimSpace(input)
				switch input {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				line.AppendHistory(input)

				sub := shellCommands(a)
				sub.SetArgs(splitArgs(input))
				sub.SetOut(cmd.OutOrStdout())
				sub.SetErr(cmd.ErrOrStderr())
				if err := sub.ExecuteContext(cmd.Context()); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				}
				if cmd.Context().Err() != nil {
					return nil
				}
			}
		},
	}
}

// splitArgs splits a shell line on spaces, keeping single or double quoted
// runs together.
func splitArgs(s string) []string {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		have  bool
	)
	for _, r := range s {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			have = true
		case r == ' ' || r == '\t':
			if have {
				args = append(args, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if have {
		args = append(args, cur.String())
	}
	return args
}

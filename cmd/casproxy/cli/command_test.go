// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var called string
	root := &Command{
		Name: "casproxy",
		Subcommands: []*Command{
			{Name: "version", Run: func(context.Context, []string) error { called = "version"; return nil }},
			{Name: "serve", Run: func(context.Context, []string) error { called = "serve"; return nil }},
		},
	}

	if err := root.Execute(context.Background(), []string{"serve"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "serve" {
		t.Errorf("dispatched to %q, want %q", called, "serve")
	}
}

func TestExecuteNestedWithFlags(t *testing.T) {
	var server string
	var received []string
	login := &Command{
		Name: "login",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flagSet.StringVar(&server, "server-url", "", "server")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			received = args
			return nil
		},
	}
	root := &Command{Name: "casproxy", Subcommands: []*Command{
		{Name: "auth", Subcommands: []*Command{login}},
	}}

	err := root.Execute(context.Background(), []string{"auth", "login", "--server-url", "https://cache.example.com", "extra"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if server != "https://cache.example.com" {
		t.Errorf("server-url = %q", server)
	}
	if len(received) != 1 || received[0] != "extra" {
		t.Errorf("args = %v, want [extra]", received)
	}
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	root := &Command{Name: "casproxy", Output: &bytes.Buffer{}, Subcommands: []*Command{
		{Name: "serve", Run: func(context.Context, []string) error { return nil }},
		{Name: "version", Run: func(context.Context, []string) error { return nil }},
	}}

	err := root.Execute(context.Background(), []string{"serv"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "serve"`) {
		t.Errorf("error = %q, want a suggestion for serve", err)
	}

	err = root.Execute(context.Background(), []string{"zzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want no suggestion for a distant name", err)
	}
}

func TestExecuteUnknownFlagSuggests(t *testing.T) {
	command := &Command{
		Name: "serve",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flagSet.String("full-handle", "", "handle")
			return flagSet
		},
		Run: func(context.Context, []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--full-handel", "a/p"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --full-handle?") {
		t.Errorf("error = %q, want a --full-handle suggestion", err)
	}
}

func TestExecuteSubcommandRequired(t *testing.T) {
	var help bytes.Buffer
	root := &Command{Name: "casproxy", Output: &help, Subcommands: []*Command{
		{Name: "serve", Summary: "Run the bridge", Run: func(context.Context, []string) error { return nil }},
	}}

	if err := root.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected error when no subcommand given")
	}
	if !strings.Contains(help.String(), "Run the bridge") {
		t.Errorf("help output missing subcommand summary:\n%s", help.String())
	}
}

func TestHelpFlag(t *testing.T) {
	var help bytes.Buffer
	called := false
	command := &Command{
		Name:        "socket-path",
		Description: "Print the socket path.",
		Output:      &help,
		Examples:    []Example{{Description: "Show the path", Command: "casproxy socket-path --full-handle acme/app"}},
		Run:         func(context.Context, []string) error { called = true; return nil },
	}

	if err := command.Execute(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("Execute(--help): %v", err)
	}
	if called {
		t.Error("--help should not run the command")
	}
	for _, want := range []string{"Print the socket path.", "Usage:", "# Show the path"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("help output missing %q:\n%s", want, help.String())
		}
	}
}

func TestPrintHelpFullName(t *testing.T) {
	login := &Command{Name: "login", Run: func(context.Context, []string) error { return nil }}
	auth := &Command{Name: "auth", Subcommands: []*Command{login}}
	root := &Command{Name: "casproxy", Subcommands: []*Command{auth}}
	var help bytes.Buffer
	root.Output = &help

	if err := root.Execute(context.Background(), []string{"auth", "login", "-h"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(help.String(), "casproxy auth login [flags]") {
		t.Errorf("help usage line missing full path:\n%s", help.String())
	}
}

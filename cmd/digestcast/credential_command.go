package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newCredentialCommand(ctx *commandContext) *cobra.Command {
	credCmd := &cobra.Command{
		Use:         "credential",
		Short:       "Manage secrets stored in the OS keyring",
		Long:        "Secrets stored here are referenced from the config as \"keyring:<name>\".",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	credCmd.AddCommand(&cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (read from stdin or prompted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.credentials()
			if err != nil {
				return err
			}
			value, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			if err := store.Set(args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s; reference it as \"keyring:%s\"\n", args[0], args[0])
			return nil
		},
	})

	credCmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.credentials()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	credCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.credentials()
			if err != nil {
				return err
			}
			names, err := store.Names()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No stored credentials")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	})

	return credCmd
}

// readSecret prompts without echo on a terminal and otherwise reads the
// first line of in.
func readSecret(in io.Reader, prompt io.Writer, name string) (string, error) {
	if file, ok := in.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		fmt.Fprintf(prompt, "Value for %s: ", name)
		raw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return validSecret(string(raw))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return validSecret(line)
}

func validSecret(value string) (string, error) {
	value = strings.TrimRight(value, "\r\n")
	if strings.TrimSpace(value) == "" {
		return "", errors.New("secret must not be empty")
	}
	return value, nil
}

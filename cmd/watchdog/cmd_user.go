package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/run-bigpig/watchdog/internal/store"
)

var userPassword string

// terminal hooks, replaced in tests
var (
	isTerminal = term.IsTerminal
	readNoEcho = term.ReadPassword
)

// userCmd manages portfolio owners
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		db, err := store.Open(cmd.Context(), cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.CreateUser(cmd.Context(), args[0], password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s created\n", args[0])
		return nil
	},
}

var userVerifyCmd = &cobra.Command{
	Use:   "verify [username]",
	Short: "Check a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		db, err := store.Open(cmd.Context(), cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ok, err := db.VerifyCredentials(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if !ok {
			return goerr.New("invalid username or password", goerr.V("user", args[0]))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	userCmd.PersistentFlags().StringVarP(&userPassword, "password", "p", "", "password (read from stdin when omitted)")
	userCmd.AddCommand(userAddCmd, userVerifyCmd)
}

func readPassword(cmd *cobra.Command) (string, error) {
	if userPassword != "" {
		return userPassword, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && isTerminal(int(f.Fd())) {
		secret, err := readNoEcho(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", goerr.Wrap(err, "failed to read password")
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", goerr.Wrap(err, "failed to read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

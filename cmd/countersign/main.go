package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/countersign/internal/app"
	"github.com/aussiebroadwan/countersign/internal/signing"
	"github.com/aussiebroadwan/countersign/pkg/esign"
)

const usage = `usage: countersign <command> [flags]

commands:
  login   -email <email> [-password-stdin]
  logout
  whoami
  inputs  -contract <id>
  sign    -token <signer token> [-set <id>=<text>]... [-date <id>=<YYYY-MM-DD>]... [-submit]`

type repeatStringFlag []string

func (r *repeatStringFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatStringFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	*r = append(*r, v)
	return nil
}

var commands = map[string]bool{"login": true, "logout": true, "whoami": true, "inputs": true, "sign": true}

// usageError marks bad invocations; they exit 2 instead of 1.
type usageError struct{ error }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || !commands[args[0]] {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := app.NewClient(app.LoadConfig())
	if err != nil {
		return report(err)
	}
	defer client.Close()
	ctx = client.Context(ctx)

	switch args[0] {
	case "login":
		err = runLogin(ctx, client, args[1:])
	case "logout":
		err = client.Auth.Logout(ctx)
	case "whoami":
		err = runWhoami(ctx, client)
	case "inputs":
		err = runInputs(ctx, client, args[1:])
	case "sign":
		err = runSign(ctx, client, args[1:])
	}
	return report(err)
}

func report(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "error:", err)

	var uerr usageError
	if errors.As(err, &uerr) {
		return 2
	}
	return 1
}

func runLogin(ctx context.Context, client *app.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "account email")
	fromStdin := fs.Bool("password-stdin", false, "read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if strings.TrimSpace(*email) == "" {
		return usageError{errors.New("-email is required")}
	}

	password := os.Getenv("COUNTERSIGN_PASSWORD")
	if *fromStdin || password == "" {
		if !*fromStdin {
			fmt.Fprint(os.Stderr, "password: ")
		}
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if err := client.Auth.Login(ctx, *email, password); err != nil {
		return err
	}

	user := client.Auth.State().Snapshot().CurrentUser
	fmt.Printf("logged in as %s\n", user.Email)
	return nil
}

func runWhoami(ctx context.Context, client *app.Client) error {
	if err := client.Auth.Boot(ctx); err != nil {
		return err
	}

	state := client.Auth.State().Snapshot()
	if state.CurrentUser == nil {
		fmt.Println(state.Status())
		if state.Message != "" {
			fmt.Println(state.Message)
		}
		return nil
	}
	return printJSON(state.CurrentUser)
}

func runInputs(ctx context.Context, client *app.Client, args []string) error {
	fs := flag.NewFlagSet("inputs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	contractID := fs.Int64("contract", 0, "contract id")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if *contractID <= 0 {
		return usageError{errors.New("-contract is required")}
	}

	if err := client.Auth.Session().UpdateToken(ctx); err != nil {
		return err
	}

	inputs, err := client.Auth.Session().ContractInputs(*contractID).List(ctx)
	if err != nil {
		return err
	}
	return printJSON(inputs)
}

func runSign(ctx context.Context, client *app.Client, args []string) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	token := fs.String("token", "", "signer token")
	var texts, dates repeatStringFlag
	fs.Var(&texts, "set", "set a name, text or signature field: <id>=<text> (repeatable)")
	fs.Var(&dates, "date", "set a date field: <id>=<YYYY-MM-DD>, empty clears (repeatable)")
	submit := fs.Bool("submit", false, "submit once every required field is complete")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if strings.TrimSpace(*token) == "" {
		return usageError{errors.New("-token is required")}
	}

	signer, err := client.SDK.ResolveSigner(ctx, *token)
	if err != nil {
		return fmt.Errorf("resolve signer: %w", err)
	}

	notify := signing.NotifierFunc(func(_ context.Context, err error) {
		fmt.Fprintf(os.Stderr, "warning: could not save fields yet: %v\n", err)
	})
	fields := client.SignerFields(*token, notify)
	if err := fields.Load(ctx); err != nil {
		return err
	}
	defer fields.Close(context.WithoutCancel(ctx))

	for _, kv := range texts {
		id, value, err := splitAssignment(kv)
		if err != nil {
			return err
		}
		if err := fields.OnFieldValueChanged(id, signing.Text(value)); err != nil {
			return err
		}
	}

	for _, kv := range dates {
		id, value, err := splitAssignment(kv)
		if err != nil {
			return err
		}

		var when *time.Time
		if value != "" {
			t, err := time.Parse(time.DateOnly, value)
			if err != nil {
				return fmt.Errorf("field %d: %w", id, err)
			}
			when = &t
		}
		if err := fields.OnFieldValueChanged(id, signing.Date(when)); err != nil {
			return err
		}
	}

	if err := fields.Flush(ctx); err != nil {
		return err
	}

	printFields(signer, fields)

	if !*submit {
		return nil
	}
	if err := fields.Submit(ctx); err != nil {
		return err
	}
	fmt.Println("submitted")
	return nil
}

func splitAssignment(kv string) (int64, string, error) {
	rawID, value, ok := strings.Cut(kv, "=")
	if !ok {
		return 0, "", fmt.Errorf("expected <id>=<value>, got %q", kv)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid field id %q", rawID)
	}
	return id, value, nil
}

func printFields(signer *esign.SignerSession, fields *signing.Synchronizer) {
	fmt.Printf("agreement %d, signing as %s\n", signer.AgreementID, signer.SignerRole)
	for _, in := range fields.Fields() {
		mark := " "
		if in.Completed {
			mark = "x"
		}
		req := ""
		if in.Required {
			req = " (required)"
		}
		fmt.Printf("  [%s] %d %-9s %-20q%s %s\n", mark, in.ID, in.Type, in.Value, req, in.Placeholder)
	}

	p := fields.Progress()
	fmt.Printf("%d/%d complete, can submit: %t\n", p.Completed, p.Total, fields.CanSubmit())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vxnlabs/siteverify/pkg/client"
)

// errRejected makes the process exit non-zero when the authority says no.
var errRejected = errors.New("token rejected")

func createVerifyCmd() *cobra.Command {
	var token string
	var asJSON bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a CAPTCHA token through the proxy",
		Long: `Send a CAPTCHA token to the siteverify proxy and print the outcome.

Without --token the token is read from stdin. On a terminal it is
prompted for without echo.

Exits non-zero when the token is rejected.

EXAMPLES:
  # Prompt for the token
  siteverify verify

  # Pass the token directly
  siteverify verify --token 03AFcWeA...

  # Pipe it in and get JSON back
  pbpaste | siteverify verify --json --server https://example.netlify.app
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runVerify(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), token, asJSON)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "token produced by the CAPTCHA widget")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw proxy response")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	return cmd
}

func runVerify(ctx context.Context, in io.Reader, out io.Writer, token string, asJSON bool) error {
	serverURL := getServer()

	if token == "" {
		var err error
		token, err = readToken(in, out)
		if err != nil {
			return err
		}
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	var opts []client.Option
	if path := getPath(); path != "" {
		opts = append(opts, client.WithPath(path))
	}

	result, err := client.New(serverURL, opts...).Verify(ctx, token)
	if err != nil {
		return fmt.Errorf("%s (%w)", client.UnavailableMessage, err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printResult(out, result)
	}

	if !result.Success {
		return errRejected
	}
	return nil
}

func printResult(out io.Writer, result *client.Result) {
	if result.Success {
		hostname := "(none)"
		if result.Hostname != nil {
			hostname = *result.Hostname
		}
		fmt.Fprintln(out, "✅ Token verified")
		fmt.Fprintf(out, "   Hostname: %s\n", hostname)
		return
	}

	if result.Error != "" {
		fmt.Fprintf(out, "❌ Proxy error: %s\n", result.Error)
		return
	}

	fmt.Fprintln(out, "❌ Token rejected")
	if len(result.ErrorCodes) > 0 {
		fmt.Fprintf(out, "   Codes:   %s\n", strings.Join(result.ErrorCodes, ", "))
	}
	fmt.Fprintf(out, "   Message: %s\n", client.Message(result.ErrorCodes))
}

// readToken prompts without echo on a terminal, otherwise reads one line.
func readToken(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Enter token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // New line after hidden input
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

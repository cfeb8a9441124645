package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/signature"
)

// NewSignCommand creates the sign command.
func NewSignCommand(g *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign [file|-]",
		Short: "Print the webhook signature header for a payload",
		Long: `Sign computes the signature the gateway expects for a request body, using
WEBHOOK_SECRET. The body is read from the named file, or from stdin when
the argument is "-" or omitted.

Example:
  curl -X POST localhost:8080/webhooks/signup-flow \
    -H "$(arkctl sign payload.json)" --data-binary @payload.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Webhook.Secret == "" {
				return &domain.ConfigError{Missing: []string{"WEBHOOK_SECRET"}, Hint: "set WEBHOOK_SECRET"}
			}

			body, err := readBody(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			v := signature.NewValidator(cfg.Webhook.Secret, signature.WithHeader(cfg.Webhook.SignatureHeader))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", v.Header(), v.Sign(body))
			return nil
		},
	}
}

func readBody(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(args[0])
}

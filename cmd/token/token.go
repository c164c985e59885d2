package token

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/api/auth"
	"github.com/hazardwatch/hazardwatch/internal/conf"
)

// Command creates the command that generates an admin token and its hash.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "token [token]",
		Short: "Generate an admin API token and its bcrypt hash",
		Long: `Print a bcrypt hash for webserver.admintokenhash.

Without an argument a random token is generated and printed as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				token = conf.GenerateRandomSecret()
				if token == "" {
					return fmt.Errorf("failed to generate a random token")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", token)
			}

			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admintokenhash: %s\n", hash)
			return nil
		},
	}
}

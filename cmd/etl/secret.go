package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-etl/internal/config"
	"github.com/stanstork/stratum-etl/internal/utils"
)

func newSecretCommand() *cobra.Command {
	secret := &cobra.Command{
		Use:   "secret",
		Short: "Manage database_cred secrets",
	}
	secret.AddCommand(&cobra.Command{
		Use:   "encrypt [value]",
		Short: "Print the enc: form of a password for database_cred",
		Long: `encrypt seals a password with secrets.encryption_key (or ETL_ENC_KEY).
The value is read from stdin when no argument is given; store the printed
line in database_cred.password.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageError{errors.Errorf("expected at most one value, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: encryptSecret,
	})
	return secret
}

func encryptSecret(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPaths()...)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	c, err := utils.NewCipher(cfg.Secrets.EncryptionKey)
	if err != nil {
		return errors.Wrap(err, "secrets.encryption_key")
	}

	var plain string
	if len(args) == 1 {
		plain = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "read secret from stdin")
		}
		plain = strings.TrimRight(line, "\r\n")
	}
	if plain == "" {
		return usageError{errors.New("empty secret")}
	}

	sealed, err := c.Encrypt(plain)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
	return err
}

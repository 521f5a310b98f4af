package publisher

import (
	"log/slog"

	"github.com/luminis/luminis/internal/config"
)

// ResolveMastodonToken returns the access token to use for the Mastodon
// publisher: the configured token if present, otherwise the secrets file
// at secretsPath. config.Validate checks the secrets file only when
// login_cli is false, so with login_cli true and no token anywhere this
// returns the secrets-file error and startup fails here.
func ResolveMastodonToken(configured, secretsPath string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	token, err := config.LoadMastodonSecret(secretsPath)
	if err != nil {
		return "", err
	}
	slog.With("component", "publisher").Info("mastodon: using access token from secrets file", "path", secretsPath)
	return token, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMisconfiguredCredentials = errors.New("mail not configured: check environment variables and config file")

type Credentials struct {
	User     string
	Password string
	To       string
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ResolveCredentials takes each of MAIL_USER, MAIL_PASS and MAIL_TO from the
// environment when set and non-empty, otherwise from the file. All three are
// required.
func ResolveCredentials(lookup LookupFunc, file FileConfig) (Credentials, error) {
	c := Credentials{
		User:     layered(lookup, "MAIL_USER", file.MailUser),
		Password: layered(lookup, "MAIL_PASS", file.MailPass),
		To:       layered(lookup, "MAIL_TO", file.MailTo),
	}

	var missing []string
	if c.User == "" {
		missing = append(missing, "MAIL_USER")
	}
	if c.Password == "" {
		missing = append(missing, "MAIL_PASS")
	}
	if c.To == "" {
		missing = append(missing, "MAIL_TO")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), ErrMisconfiguredCredentials)
	}
	return c, nil
}

func layered(lookup LookupFunc, key, fallback string) string {
	if lookup != nil {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(fallback)
}

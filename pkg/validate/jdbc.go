package validate

import (
	"fmt"
	"net/url"
	"strings"
)

// PostgresDSNFromJDBC translates a jdbc:postgresql connection URL into a
// DSN database/sql drivers accept. Sink configs carry the JDBC form;
// the validator dials the same database directly.
func PostgresDSNFromJDBC(jdbcURL string) (string, error) {
	rest, ok := strings.CutPrefix(jdbcURL, "jdbc:")
	if !ok {
		return "", fmt.Errorf("jdbc url %q: missing jdbc: prefix", jdbcURL)
	}
	u, err := url.Parse(rest)
	if err != nil {
		return "", fmt.Errorf("jdbc url %q: %w", jdbcURL, err)
	}
	if u.Scheme != "postgresql" && u.Scheme != "postgres" {
		return "", fmt.Errorf("jdbc url %q: unsupported driver %q", jdbcURL, u.Scheme)
	}

	q := u.Query()
	out := url.URL{
		Scheme: "postgres",
		Host:   u.Host,
		Path:   u.Path,
	}
	user := q.Get("user")
	if user != "" {
		pass := q.Get("password")
		if pass != "" {
			out.User = url.UserPassword(user, pass)
		} else {
			out.User = url.User(user)
		}
	}
	q.Del("user")
	q.Del("password")
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	out.RawQuery = q.Encode()
	return out.String(), nil
}

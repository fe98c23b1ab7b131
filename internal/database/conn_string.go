package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/deribit-prices/internal/config"
)

// ApplicationName is reported to the server as application_name.
const ApplicationName = "deribit-prices"

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	u.RawQuery = q.Encode()

	return u.String()
}

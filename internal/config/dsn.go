package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// DSN returns the backend connection string for the store. A DB_URL, when
// given, wins over the discrete parts.
func (d DB) DSN() string {
	if d.dsn != "" {
		return d.dsn
	}
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))

	switch d.Kind {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   addr,
			Path:   "/" + d.Name,
		}
		return u.String()
	case "mssql":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(d.User, d.Password),
			Host:     addr,
			RawQuery: url.Values{"database": {d.Name}}.Encode(),
		}
		return u.String()
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = d.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	case "sqlite":
		if filepath.Ext(d.Name) == "" {
			return d.Name + ".db"
		}
		return d.Name
	default:
		return ""
	}
}

// Redacted describes the store without its password, for logs.
func (d DB) Redacted() string {
	if d.url != "" {
		return redactURL(d.url)
	}
	if d.Kind == "sqlite" {
		return fmt.Sprintf("kind=sqlite file=%s", d.DSN())
	}
	return fmt.Sprintf("kind=%s host=%s port=%d db=%s user=%s schema=%s", d.Kind, d.Host, d.Port, d.Name, d.User, d.Schema)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}

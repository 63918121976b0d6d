package database

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindSQLite Kind = iota
	KindMySQL
	KindTeradata
	KindPostgres
	KindLibSQL
)

func (k Kind) String() string {
	switch k {
	case KindSQLite:
		return "sqlite"
	case KindMySQL:
		return "mysql"
	case KindTeradata:
		return "teradata"
	case KindPostgres:
		return "postgres"
	case KindLibSQL:
		return "libsql"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3", "memory":
		return KindSQLite, nil
	case "mysql":
		return KindMySQL, nil
	case "teradata", "td":
		return KindTeradata, nil
	case "postgres", "postgresql", "pg":
		return KindPostgres, nil
	case "libsql", "turso":
		return KindLibSQL, nil
	}
	return 0, fmt.Errorf("unknown database kind %q", s)
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const (
	DefaultPoolSize       = 20
	DefaultPoolRecycle    = 1800 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultCharset        = "iso-8859-15"
	DefaultLogmech        = "LDAP"
	DefaultTeradataDriver = "Teradata"

	DefaultRetryAttempts = 30
	DefaultRetryInterval = 20 * time.Second
)

// Duration decodes from a Go duration string such as "20s" or "1m30s", or
// from a bare number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON also accepts the single quoted strings of json5.
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	if n := len(data); n >= 2 && (data[0] == '"' || data[0] == '\'') && data[n-1] == data[0] {
		data = data[1 : n-1]
	}
	return d.UnmarshalText(data)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(seconds * float64(time.Second)), nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: use a number of seconds or a value like \"20s\"", s)
	}
	return Duration(parsed), nil
}

type RetryPolicy struct {
	Attempts int      `json:"attempts"`
	Interval Duration `json:"interval"`
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts == 0 {
		p.Attempts = DefaultRetryAttempts
	}
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Interval <= 0 {
		p.Interval = Duration(DefaultRetryInterval)
	}
	return p
}

type Options struct {
	Kind     Kind   `json:"kind"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	// Logmech selects the Teradata authentication mechanism, LDAP adds
	// AUTHENTICATION=LDAP to the connection string.
	Logmech string `json:"logmech"`
	Charset string `json:"charset"`
	// Driver is the Teradata ODBC driver name, matched against the drivers
	// registered in odbcinst.ini.
	Driver string `json:"driver"`
	// File is the sqlite database path, empty or ":memory:" for an
	// in-memory database.
	File string `json:"file"`
	// URL is the libSQL (turso) database url.
	URL string `json:"url"`

	ConnectTimeout Duration    `json:"connect_timeout"`
	PoolSize       int         `json:"pool_size"`
	PoolRecycle    Duration    `json:"pool_recycle"`
	BatchRows      int         `json:"batch_rows"`
	Retry          RetryPolicy `json:"retry"`
}

func (o Options) withDefaults() Options {
	if o.PoolSize <= 0 {
		o.PoolSize = DefaultPoolSize
	}
	if o.PoolRecycle <= 0 {
		o.PoolRecycle = Duration(DefaultPoolRecycle)
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = Duration(DefaultConnectTimeout)
	}
	if o.Charset == "" {
		o.Charset = DefaultCharset
	}
	if o.Logmech == "" {
		o.Logmech = DefaultLogmech
	}
	if o.Driver == "" {
		o.Driver = DefaultTeradataDriver
	}
	o.Retry = o.Retry.withDefaults()
	return o
}

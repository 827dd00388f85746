// Package backend opens the persistence backend selected by DATA_BACKEND,
// together with the optional record event publisher.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"gestao/internal/config"
)

// Kind names a persistence backend.
type Kind string

const (
	// KindLocal keeps records in a JSON file on the local disk.
	KindLocal Kind = "local"
	// KindSQLite keeps records in SQLite and can announce changes over AMQP.
	KindSQLite Kind = "sqlite"
)

// Kinds lists every supported backend in a stable order.
func Kinds() []Kind { return []Kind{KindLocal, KindSQLite} }

// ParseKind maps a DATA_BACKEND value to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q (want one of %s)", s, joinKinds())
}

func joinKinds() string {
	names := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// Events addresses the broker record mutations are published to. A zero
// URL disables publishing.
type Events struct {
	URL      string
	Exchange string
	Queue    string
}

func (e Events) Enabled() bool { return e.URL != "" }

// Config selects and locates a backend.
type Config struct {
	Kind Kind

	// local
	DataDir    string
	StorageKey string

	// sqlite
	DBPath string
	Events Events
}

// ConfigFrom extracts the backend settings from the application config.
func ConfigFrom(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("nil application config")
	}
	kind, err := ParseKind(app.DataBackend)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Kind:       kind,
		DataDir:    app.LocalDataDir,
		StorageKey: app.LocalStorageKey,
		DBPath:     app.SQLiteDBPath,
		Events: Events{
			URL:      app.AMQPURL,
			Exchange: app.AMQPExchange,
			Queue:    app.AMQPQueue,
		},
	}, nil
}

// Validate checks that the chosen backend has what it needs to open.
func (c Config) Validate() error {
	switch c.Kind {
	case KindLocal:
		if c.DataDir == "" {
			return errors.New("local backend needs a data directory")
		}
	case KindSQLite:
		if c.DBPath == "" {
			return errors.New("sqlite backend needs a database path")
		}
		if c.Events.Enabled() && (c.Events.Exchange == "" || c.Events.Queue == "") {
			return errors.New("record events need both an exchange and a queue")
		}
	default:
		return fmt.Errorf("unknown backend %q (want one of %s)", c.Kind, joinKinds())
	}
	return nil
}

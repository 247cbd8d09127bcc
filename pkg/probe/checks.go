package probe

import (
	"context"
	"errors"
	"time"
)

// Pinger is satisfied by the status store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SiteInfo is satisfied by the wiki client.
type SiteInfo interface {
	SiteName(ctx context.Context) (string, error)
}

// Asker is satisfied by the query client.
type Asker interface {
	Ask(ctx context.Context, query string) (bool, error)
}

// Database checks that the status store answers.
func Database(p Pinger) Probe {
	return Probe{
		Name:     "Status database",
		Critical: true,
		Check:    p.Ping,
	}
}

// Wiki checks that the wiki API answers siteinfo queries.
func Wiki(s SiteInfo) Probe {
	return Probe{
		Name:     "Wiki API",
		Critical: true,
		Timeout:  15 * time.Second,
		Check: func(ctx context.Context) error {
			name, err := s.SiteName(ctx)
			if err != nil {
				return err
			}
			if name == "" {
				return errors.New("empty site name")
			}
			return nil
		},
	}
}

// Sparql checks that the query service evaluates a trivial ASK. Not critical.
func Sparql(a Asker) Probe {
	return Probe{
		Name:    "SPARQL endpoint",
		Timeout: 30 * time.Second,
		Check: func(ctx context.Context) error {
			ok, err := a.Ask(ctx, "ASK {}")
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("ASK {} returned false")
			}
			return nil
		},
	}
}

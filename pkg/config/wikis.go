package config

import (
	"fmt"
	"net/url"
)

// knownWikis maps wiki database names to their host.
var knownWikis = map[string]string{
	"commonswiki":     "commons.wikimedia.org",
	"testcommonswiki": "test-commons.wikimedia.org",
	"wikidatawiki":    "www.wikidata.org",
	"testwiki":        "test.wikipedia.org",
}

// WikiServer returns the host of the configured wiki.
func (c *Config) WikiServer() (string, error) {
	if c.Wiki.Server != "" {
		return c.Wiki.Server, nil
	}
	if c.Wiki.APIEndpoint != "" {
		u, err := url.Parse(c.Wiki.APIEndpoint)
		if err != nil || u.Host == "" {
			return "", &ConfigurationError{Field: "wiki.api_endpoint", Reason: "not a valid URL"}
		}
		return u.Host, nil
	}
	if server, ok := knownWikis[c.Wiki.Name]; ok {
		return server, nil
	}
	return "", &ConfigurationError{
		Field:  "wiki.server",
		Reason: fmt.Sprintf("unknown wiki %q, set the server explicitly", c.Wiki.Name),
	}
}

// WikiAPIEndpoint returns the action API URL of the configured wiki.
func (c *Config) WikiAPIEndpoint() (string, error) {
	if c.Wiki.APIEndpoint != "" {
		return c.Wiki.APIEndpoint, nil
	}
	server, err := c.WikiServer()
	if err != nil {
		return "", err
	}
	return "https://" + server + "/w/api.php", nil
}

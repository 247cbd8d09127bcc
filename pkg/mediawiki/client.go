// Package mediawiki is a small client for the MediaWiki action API: reading
// page source, saving edits as a bot, and listing template transclusions.
package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/smalyshev/TabulistBot/pkg/request"
)

const defaultMaxlag = 5

// Client handles MediaWiki API interactions for one wiki.
type Client struct {
	request     *request.Client
	APIEndpoint string
	// Maxlag is sent with edits; 0 disables it.
	Maxlag int
	// MaxlagRetries bounds how often an edit is repeated after a maxlag refusal.
	MaxlagRetries int
	MaxlagWait    time.Duration
	logger        *slog.Logger
}

// EditFlags controls how an edit is marked.
type EditFlags struct {
	Minor bool
	Bot   bool
}

// Page identifies a page by namespace and title.
type Page struct {
	Namespace int    `json:"ns"`
	Title     string `json:"title"`
}

// NewClient creates a client for the API at endpoint, e.g. https://commons.wikimedia.org/w/api.php.
// The request client needs a cookie jar for Login to stick.
func NewClient(r *request.Client, endpoint string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		request:       r,
		APIEndpoint:   endpoint,
		Maxlag:        defaultMaxlag,
		MaxlagRetries: 3,
		MaxlagWait:    5 * time.Second,
		logger:        logger,
	}
}

// EndpointForServer builds the api.php URL of a wiki host name.
func EndpointForServer(server string) string {
	return "https://" + server + "/w/api.php"
}

type apiResponse struct {
	Error *APIError `json:"error"`
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	u, err := url.Parse(c.APIEndpoint)
	if err != nil {
		return fmt.Errorf("invalid api endpoint: %w", err)
	}
	params.Set("format", "json")
	params.Set("formatversion", "2")
	u.RawQuery = params.Encode()

	body, err := c.request.Get(ctx, u.String())
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) post(ctx context.Context, form url.Values, out any) error {
	form.Set("format", "json")
	form.Set("formatversion", "2")

	body, err := c.request.PostForm(ctx, c.APIEndpoint, form, nil)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// decode unmarshals body into out, surfacing an API error object first.
func decode(body []byte, out any) error {
	var errResp apiResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("failed to decode json: %w", err)
	}
	if errResp.Error != nil {
		return errResp.Error
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode json: %w", err)
	}
	return nil
}

// GetSource returns the wikitext or JSON of the latest revision of title.
func (c *Client) GetSource(ctx context.Context, title string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "revisions")
	q.Set("rvprop", "content")
	q.Set("rvslots", "main")
	q.Set("titles", DisplayTitle(title))

	var resp struct {
		Query struct {
			Pages []struct {
				Title     string `json:"title"`
				Missing   bool   `json:"missing"`
				Invalid   bool   `json:"invalid"`
				Revisions []struct {
					Slots struct {
						Main struct {
							Content string `json:"content"`
						} `json:"main"`
					} `json:"slots"`
				} `json:"revisions"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.get(ctx, q, &resp); err != nil {
		return "", err
	}

	for _, page := range resp.Query.Pages {
		if page.Missing || page.Invalid || len(page.Revisions) == 0 {
			return "", fmt.Errorf("%w: %s", ErrNotFound, title)
		}
		return page.Revisions[0].Slots.Main.Content, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, title)
}

// token fetches a token of the given type ("csrf", "login").
func (c *Client) token(ctx context.Context, typ string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("meta", "tokens")
	q.Set("type", typ)

	var resp struct {
		Query struct {
			Tokens map[string]string `json:"tokens"`
		} `json:"query"`
	}
	if err := c.get(ctx, q, &resp); err != nil {
		return "", err
	}
	tok := resp.Query.Tokens[typ+"token"]
	if tok == "" {
		return "", fmt.Errorf("no %s token in response", typ)
	}
	return tok, nil
}

// Login starts a bot session. Session cookies live in the request client's jar.
func (c *Client) Login(ctx context.Context, user, pass string) error {
	tok, err := c.token(ctx, "login")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	form := url.Values{}
	form.Set("action", "login")
	form.Set("lgname", user)
	form.Set("lgpassword", pass)
	form.Set("lgtoken", tok)

	var resp struct {
		Login struct {
			Result   string `json:"result"`
			Reason   string `json:"reason"`
			Username string `json:"lgusername"`
		} `json:"login"`
	}
	if err := c.post(ctx, form, &resp); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if resp.Login.Result != "Success" {
		return fmt.Errorf("%w: %s %s", ErrLoginFailed, resp.Login.Result, resp.Login.Reason)
	}
	c.logger.Info("Logged in", "user", resp.Login.Username)
	return nil
}

// Save replaces the content of an existing page. A page deleted in the
// meantime is reported as ErrPageDisappeared; pages are never created.
func (c *Client) Save(ctx context.Context, title, content, summary string, flags EditFlags) error {
	tok, err := c.token(ctx, "csrf")
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "edit")
	form.Set("title", DisplayTitle(title))
	form.Set("text", content)
	form.Set("summary", summary)
	form.Set("nocreate", "1")
	form.Set("token", tok)
	if flags.Minor {
		form.Set("minor", "1")
	} else {
		form.Set("notminor", "1")
	}
	if flags.Bot {
		form.Set("bot", "1")
	}
	if c.Maxlag > 0 {
		form.Set("maxlag", strconv.Itoa(c.Maxlag))
	}

	var resp struct {
		Edit struct {
			Result   string `json:"result"`
			NoChange bool   `json:"nochange"`
			NewRevID int64  `json:"newrevid"`
		} `json:"edit"`
	}

	for attempt := 0; ; attempt++ {
		err = c.post(ctx, form, &resp)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "maxlag" || attempt >= c.MaxlagRetries {
			break
		}
		c.logger.Warn("Edit refused for replication lag, waiting", "title", title, "attempt", attempt+1)
		select {
		case <-time.After(c.MaxlagWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == "missingtitle" || apiErr.Code == "pagedeleted") {
			return fmt.Errorf("%w: %s", ErrPageDisappeared, title)
		}
		return err
	}
	if resp.Edit.Result != "Success" {
		return fmt.Errorf("edit of %s not saved: %s", title, resp.Edit.Result)
	}

	c.logger.Debug("Saved page", "title", title, "revid", resp.Edit.NewRevID, "nochange", resp.Edit.NoChange)
	return nil
}

// EmbeddedIn lists the pages in namespace that transclude template, following continuation.
func (c *Client) EmbeddedIn(ctx context.Context, template string, namespace int) ([]Page, error) {
	var pages []Page
	cont := url.Values{}
	for {
		q := url.Values{}
		q.Set("action", "query")
		q.Set("list", "embeddedin")
		q.Set("eititle", DisplayTitle(template))
		q.Set("einamespace", strconv.Itoa(namespace))
		q.Set("eilimit", "max")
		for k, v := range cont {
			q[k] = v
		}

		var resp struct {
			Continue map[string]string `json:"continue"`
			Query    struct {
				EmbeddedIn []Page `json:"embeddedin"`
			} `json:"query"`
		}
		if err := c.get(ctx, q, &resp); err != nil {
			return nil, err
		}
		pages = append(pages, resp.Query.EmbeddedIn...)

		if len(resp.Continue) == 0 {
			break
		}
		cont = url.Values{}
		for k, v := range resp.Continue {
			cont.Set(k, v)
		}
	}
	return pages, nil
}

// SiteName fetches the wiki's site name; used as a reachability check.
func (c *Client) SiteName(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("meta", "siteinfo")
	q.Set("siprop", "general")

	var resp struct {
		Query struct {
			General struct {
				SiteName string `json:"sitename"`
			} `json:"general"`
		} `json:"query"`
	}
	if err := c.get(ctx, q, &resp); err != nil {
		return "", err
	}
	return resp.Query.General.SiteName, nil
}

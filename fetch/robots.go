package fetch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const defaultRobotsTTL = time.Hour

// Robots answers robots.txt questions with a per-host cache. A missing or
// unreadable robots.txt allows everything, matching crawler convention.
type Robots struct {
	client *Client
	ttl    time.Duration

	mu    sync.RWMutex
	hosts map[string]*robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

// NewRobots creates a robots gate backed by the given client. A ttl of zero
// uses the one hour default.
func NewRobots(client *Client, ttl time.Duration) *Robots {
	if ttl <= 0 {
		ttl = defaultRobotsTTL
	}
	return &Robots{
		client: client,
		ttl:    ttl,
		hosts:  make(map[string]*robotsEntry),
	}
}

// Allowed reports whether the client's user agent may fetch the URL.
// Unparseable URLs and robots.txt fetch failures allow the fetch.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	entry := r.entryFor(ctx, u)
	if entry.allowAll {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return entry.data.TestAgent(path, r.client.UserAgent())
}

func (r *Robots) entryFor(ctx context.Context, u *url.URL) *robotsEntry {
	key := u.Scheme + "://" + u.Host

	r.mu.RLock()
	entry, ok := r.hosts[key]
	r.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < r.ttl {
		return entry
	}

	entry = r.fetch(ctx, key)

	r.mu.Lock()
	r.hosts[key] = entry
	r.mu.Unlock()
	return entry
}

func (r *Robots) fetch(ctx context.Context, base string) *robotsEntry {
	entry := &robotsEntry{fetchedAt: time.Now()}

	resp, err := r.client.Get(ctx, base+"/robots.txt")
	if err != nil {
		entry.allowAll = true
		return entry
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		entry.allowAll = true
		return entry
	}
	entry.data = data
	return entry
}

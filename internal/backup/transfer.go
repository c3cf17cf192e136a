package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Section names in transfer order. Items must travel first so the receiving
// side can resolve request lines and movements against them.
var syncSections = []string{"items", "requests", "movements", "managers", "uploads"}

// SectionStatus reports the outcome of transferring one section.
type SectionStatus struct {
	Section string         `json:"section"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Result  *SectionResult `json:"result,omitempty"`
}

// Client pushes and pulls pantry data against a remote pantry instance.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient returns a transfer client with a bounded request timeout, so a
// dead remote fails the sync instead of hanging it.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CheckTarget rejects a remote URL that points back at this instance, which
// would make the sync a no-op at best and a wipe at worst. Callers pass every
// name this instance answers to, typically the listen address and the Host
// header of the triggering request.
func (c *Client) CheckTarget(localHosts ...string) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return &TransportError{URL: c.BaseURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &TransportError{URL: c.BaseURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	for _, local := range localHosts {
		if sameHost(u.Host, local) {
			return &TransportError{URL: c.BaseURL, Err: fmt.Errorf("remote host matches local host %q", local)}
		}
	}
	return nil
}

// sameHost reports whether the remote host:port refers to the given local
// address. Listen addresses often have an empty host (":8080"), so a port
// match against a loopback remote counts as local too.
func sameHost(remote, local string) bool {
	if local == "" {
		return false
	}
	if remote == local {
		return true
	}
	rHost, rPort := splitHostPort(remote)
	lHost, lPort := splitHostPort(local)
	if rPort != lPort {
		return false
	}
	if rHost == lHost {
		return true
	}
	return isLoopback(rHost) && (lHost == "" || isLoopback(lHost))
}

func splitHostPort(hostport string) (host, port string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, ""
	}
	return host, port
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Push exports each section locally and uploads it to the remote in fixed
// order. A failed items section aborts the remaining sections, since the
// remote could not resolve their references; any other failure is recorded
// per section and the push continues.
func (c *Client) Push(ctx context.Context, db *sql.DB, uploadsDir string) []SectionStatus {
	statuses := make([]SectionStatus, 0, len(syncSections))
	for _, section := range syncSections {
		status := SectionStatus{Section: section}

		var buf bytes.Buffer
		var err error
		switch section {
		case "items":
			err = WriteItemsCSV(ctx, db, &buf)
		case "requests":
			err = WriteRequestsCSV(ctx, db, &buf)
		case "movements":
			err = WriteMovementsCSV(ctx, db, &buf)
		case "managers":
			err = WriteManagersCSV(ctx, db, &buf)
		case "uploads":
			err = WriteUploadsArchive(&buf, uploadsDir)
		}
		if err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			if section == "items" {
				return statuses
			}
			continue
		}

		if err := c.pushSection(ctx, section, buf.Bytes()); err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			log.Error().Err(err).Str("section", section).Msg("push failed")
			if section == "items" {
				return statuses
			}
			continue
		}

		status.OK = true
		statuses = append(statuses, status)
		log.Info().Str("section", section).Msg("section pushed")
	}
	return statuses
}

func (c *Client) pushSection(ctx context.Context, section string, payload []byte) error {
	endpoint := c.BaseURL + "/api/sync/import/" + section

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	filename := section + ".csv"
	if section == "uploads" {
		filename = "uploads.zip"
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return &TransportError{Section: section, URL: endpoint, Err: err}
	}
	if _, err := part.Write(payload); err != nil {
		return &TransportError{Section: section, URL: endpoint, Err: err}
	}
	// Form-field fallback for remotes that don't read the header.
	if err := mw.WriteField("token", c.Token); err != nil {
		return &TransportError{Section: section, URL: endpoint, Err: err}
	}
	if err := mw.Close(); err != nil {
		return &TransportError{Section: section, URL: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return &TransportError{Section: section, URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Sync-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Section: section, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransportError{
			Section: section,
			URL:     endpoint,
			Err:     fmt.Errorf("remote returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}
	return nil
}

// Pull downloads each section from the remote and merges it into the local
// store, in the same fixed order as Push and with the same items-first abort
// rule.
func (c *Client) Pull(ctx context.Context, db *sql.DB, uploadsDir string) []SectionStatus {
	statuses := make([]SectionStatus, 0, len(syncSections))
	for _, section := range syncSections {
		status := SectionStatus{Section: section}

		payload, err := c.pullSection(ctx, section)
		if err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			log.Error().Err(err).Str("section", section).Msg("pull failed")
			if section == "items" {
				return statuses
			}
			continue
		}

		var result *SectionResult
		switch section {
		case "items":
			result, err = ImportItems(ctx, db, bytes.NewReader(payload))
		case "requests":
			result, err = ImportRequests(ctx, db, bytes.NewReader(payload))
		case "movements":
			result, err = ImportMovements(ctx, db, bytes.NewReader(payload))
		case "managers":
			result, err = ImportManagers(ctx, db, bytes.NewReader(payload))
		case "uploads":
			if len(payload) > 0 {
				err = ExtractUploadsArchive(payload, uploadsDir)
			}
		}
		if err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			if section == "items" {
				return statuses
			}
			continue
		}

		status.OK = true
		status.Result = result
		statuses = append(statuses, status)
		log.Info().Str("section", section).Msg("section pulled")
	}
	return statuses
}

func (c *Client) pullSection(ctx context.Context, section string) ([]byte, error) {
	endpoint := c.BaseURL + "/api/sync/export/" + section

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Section: section, URL: endpoint, Err: err}
	}
	req.Header.Set("X-Sync-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Section: section, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{
			Section: section,
			URL:     endpoint,
			Err:     fmt.Errorf("remote returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Section: section, URL: endpoint, Err: err}
	}
	return payload, nil
}

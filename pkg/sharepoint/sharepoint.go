// Copyright 2025 karhuops Oy
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sharepoint is a small Microsoft Graph client scoped to one
// document library. Construction resolves the site and drive once; the
// operations the pipeline needs (list, upload, move, folder create, list
// item fields) address everything relative to that drive.
package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/runlog"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"
	defaultScope   = "https://graph.microsoft.com/.default"
	tokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// 📄 Item is one drive item, file or folder
type Item struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Folder *FolderFacet `json:"folder,omitempty"`
}

// FolderFacet is present on an item exactly when it is a folder.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// IsFolder reports whether the item carries the folder facet.
func (i Item) IsFolder() bool {
	return i.Folder != nil
}

// errorEnvelope is Graph's error wire format. The code field is the
// machine-readable discriminator; messages are localized and unstable.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// 🔌 Client talks to one document library through Microsoft Graph
type Client struct {
	http    *http.Client
	base    string
	buf     *runlog.Buffer
	siteID  string
	driveID string
}

// New acquires a client-credentials token source, resolves the configured
// site by hostname and path, and picks the drive whose name matches the
// configured document library. Resolution failures surface as NotFound so
// callers never mistake a typo for a transient fault.
func New(ctx context.Context, cfg config.SharePointConfig, buf *runlog.Buffer) (*Client, error) {
	switch {
	case cfg.TenantID == "":
		return nil, errors.Errorf("%w: sharepoint.tenant_id is required", fault.ErrConfiguration)
	case cfg.ClientID == "":
		return nil, errors.Errorf("%w: sharepoint.client_id is required", fault.ErrConfiguration)
	case cfg.ClientSecret == "":
		return nil, errors.Errorf("%w: sharepoint.client_secret is required", fault.ErrConfiguration)
	case cfg.SiteURL == "":
		return nil, errors.Errorf("%w: sharepoint.site_url is required", fault.ErrConfiguration)
	case cfg.DriveName == "":
		return nil, errors.Errorf("%w: sharepoint.drive_name is required", fault.ErrConfiguration)
	}

	site, err := url.Parse(cfg.SiteURL)
	if err != nil || site.Host == "" {
		return nil, errors.Errorf("%w: sharepoint.site_url %q is not a valid URL", fault.ErrConfiguration, cfg.SiteURL)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf(tokenURLFormat, url.PathEscape(cfg.TenantID))
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
	}

	c := &Client{
		http: creds.Client(ctx),
		base: strings.TrimRight(base, "/"),
		buf:  buf,
	}

	if err := c.resolveSite(ctx, site); err != nil {
		return nil, err
	}
	if err := c.resolveDrive(ctx, cfg.DriveName, site.Host); err != nil {
		return nil, err
	}

	buf.Logf("Connection to SharePoint site %s OK", site.Host)
	return c, nil
}

func (c *Client) resolveSite(ctx context.Context, site *url.URL) error {
	endpoint := c.base + "/sites/" + site.Host
	if sitePath := strings.TrimSuffix(site.Path, "/"); sitePath != "" {
		endpoint += ":" + sitePath
	}

	var resolved struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resolved); err != nil {
		return err
	}
	if resolved.ID == "" {
		return errors.Errorf("%w: site %s resolved without an id", fault.ErrNotFound, site.Host)
	}

	c.siteID = resolved.ID
	return nil
}

func (c *Client) resolveDrive(ctx context.Context, driveName, host string) error {
	var drives struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, c.base+"/sites/"+c.siteID+"/drives", nil, &drives); err != nil {
		return err
	}

	for _, drive := range drives.Value {
		if drive.Name == driveName {
			c.driveID = drive.ID
			return nil
		}
	}
	return errors.Errorf("%w: site %s has no drive named %q", fault.ErrNotFound, host, driveName)
}

// 🔍 ListFiles returns the direct children of a folder. An empty folder
// means the drive root.
func (c *Client) ListFiles(ctx context.Context, folder string) ([]Item, error) {
	var out struct {
		Value []Item `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, c.childrenURL(folder), nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// 📁 CreateFolderIfNotExists probes the folder and creates it through its
// parent's children endpoint when the probe reports NotFound. Any other
// probe failure is returned unchanged so transient faults never trigger a
// create.
func (c *Client) CreateFolderIfNotExists(ctx context.Context, folder string) error {
	if folder == "" {
		return nil
	}

	_, err := c.ListFiles(ctx, folder)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fault.ErrNotFound) {
		return err
	}

	parent, leaf := splitFolder(folder)
	body := map[string]any{
		"name":   leaf,
		"folder": map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	}
	if err := c.do(ctx, http.MethodPost, c.childrenURL(parent), body, nil); err != nil {
		return errors.Errorf("%w: creating folder %s: %v", fault.ErrUpload, folder, err)
	}

	c.buf.Logf("Created folder %s", folder)
	return nil
}

// 🚚 MoveFileToArchive finds the named file in the source folder and
// patches its parent reference to the archive folder. The item keeps its
// identity; this is a move, not a copy.
func (c *Client) MoveFileToArchive(ctx context.Context, sourceFolder, name, archiveFolder string) error {
	items, err := c.ListFiles(ctx, sourceFolder)
	if err != nil {
		return err
	}

	itemID := ""
	for _, item := range items {
		if !item.IsFolder() && item.Name == name {
			itemID = item.ID
			break
		}
	}
	if itemID == "" {
		return errors.Errorf("%w: folder %s has no file named %s", fault.ErrNotFound, folderLabel(sourceFolder), name)
	}

	body := map[string]any{
		"parentReference": map[string]any{
			"path": "/drives/" + c.driveID + "/root:/" + archiveFolder,
		},
	}
	if err := c.do(ctx, http.MethodPatch, c.base+"/drives/"+c.driveID+"/items/"+itemID, body, nil); err != nil {
		return err
	}

	c.buf.Logf("Moved/Renamed %s to %s", name, archiveFolder)
	return nil
}

// 📤 UploadFile PUTs the whole local file as the named item in the
// folder. Graph answers 200 for a replaced item and 201 for a new one;
// anything else is an upload failure carrying status and body.
func (c *Client) UploadFile(ctx context.Context, folder, name, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Errorf("%w: opening %s: %v", fault.ErrUpload, localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Errorf("%w: sizing %s: %v", fault.ErrUpload, localPath, err)
	}

	target := name
	if folder != "" {
		target = folder + "/" + name
	}
	endpoint := c.base + "/drives/" + c.driveID + "/root:/" + escapePath(target) + ":/content"

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, f)
	if err != nil {
		return errors.Errorf("%w: building upload request for %s: %v", fault.ErrUpload, name, err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Errorf("%w: uploading %s: %v", fault.ErrConnection, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return errors.Errorf("%w: uploading %s: status %d: %s",
			fault.ErrUpload, name, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.buf.Logf("Uploaded %s to %s", name, folderLabel(folder))
	return nil
}

// 📝 ItemFields fetches the item's list-item fields, where the library's
// custom columns (the done flag among them) live.
func (c *Client) ItemFields(ctx context.Context, itemID string) (map[string]any, error) {
	fields := map[string]any{}
	endpoint := c.base + "/drives/" + c.driveID + "/items/" + itemID + "/listItem/fields"
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Done interprets a list-item field as the done flag. SharePoint returns
// booleans as JSON booleans, but older columns come through as strings or
// numbers.
func Done(fields map[string]any, field string) bool {
	switch v := fields[field].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case float64:
		return v != 0
	default:
		return false
	}
}

func (c *Client) childrenURL(folder string) string {
	if folder == "" {
		return c.base + "/drives/" + c.driveID + "/root/children"
	}
	return c.base + "/drives/" + c.driveID + "/root:/" + escapePath(folder) + ":/children"
}

// do runs one JSON round trip. Graph failures decode through the error
// envelope: itemNotFound and plain 404 become NotFound, auth failures
// become connection errors, the rest keep their status and code for the
// caller to wrap.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Errorf("encoding %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Errorf("building %s %s: %w", method, endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Errorf("%w: %s %s: %v", fault.ErrConnection, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Errorf("%w: reading %s response: %v", fault.ErrConnection, endpoint, err)
	}

	if resp.StatusCode >= 400 {
		var env errorEnvelope
		_ = json.Unmarshal(data, &env)
		code := env.Error.Code
		if code == "" {
			code = http.StatusText(resp.StatusCode)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound || code == "itemNotFound":
			return errors.Errorf("%w: %s %s: %s", fault.ErrNotFound, method, endpoint, code)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return errors.Errorf("%w: %s %s: status %d %s: %s",
				fault.ErrConnection, method, endpoint, resp.StatusCode, code, env.Error.Message)
		default:
			return errors.Errorf("graph %s %s: status %d %s: %s",
				method, endpoint, resp.StatusCode, code, env.Error.Message)
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Errorf("decoding %s response: %w", endpoint, err)
		}
	}
	return nil
}

// escapePath escapes each path segment without touching the separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func splitFolder(folder string) (parent, leaf string) {
	idx := strings.LastIndex(folder, "/")
	if idx < 0 {
		return "", folder
	}
	return folder[:idx], folder[idx+1:]
}

func folderLabel(folder string) string {
	if folder == "" {
		return "root"
	}
	return folder
}

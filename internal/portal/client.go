// Package portal is a thin client for the parts of the ArcGIS sharing REST API the solution engine needs.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/config"
)

const restPrefix = "/sharing/rest"

// groupPageSize is the largest page the group content search allows.
const groupPageSize = 100

// Client reads and writes items in an ArcGIS portal.
type Client interface {
	// URL returns the base URL of the portal.
	URL() string
	// GetItem returns the description of an item. If the item does not exist, an ErrNotFound is returned.
	GetItem(ctx context.Context, id string) (*Item, error)
	// GetItemData returns the parsed data section of an item, or nil if the item has no JSON data.
	GetItemData(ctx context.Context, id string) (any, error)
	// GetGroup returns the description of a group. If the group does not exist, an ErrNotFound is returned.
	GetGroup(ctx context.Context, id string) (*Group, error)
	// GetGroupContents lists all items shared to a group, following pagination.
	GetGroupContents(ctx context.Context, id string) ([]*Item, error)
	// GetService returns the definition of a feature service.
	GetService(ctx context.Context, serviceURL string) (*Service, error)
	// GetLayer returns the definition of a single layer or table of a feature service.
	GetLayer(ctx context.Context, serviceURL string, layerID int) (map[string]any, error)
	// AddItem creates an item owned by the configured user and returns its ID.
	AddItem(ctx context.Context, request AddItemRequest) (string, error)
	// UpdateItem changes an existing item.
	UpdateItem(ctx context.Context, id string, request UpdateItemRequest) error
	// ShareItem shares an item with the given groups.
	ShareItem(ctx context.Context, id string, groupIDs []string) error
	// CreateGroup creates a group and returns its ID.
	CreateGroup(ctx context.Context, request CreateGroupRequest) (string, error)
	// CreateService creates an empty hosted feature service.
	CreateService(ctx context.Context, request CreateServiceRequest) (*CreatedService, error)
	// AddToDefinition adds layers and tables to a hosted feature service.
	AddToDefinition(ctx context.Context, serviceURL string, definition map[string]any) error
}

// New creates a portal client from the configuration.
func New(logger log.Logger, cfg config.Portal) (Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("bug: no logger passed to portal.New")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("no portal URL configured")
	}
	baseURL := strings.TrimSuffix(cfg.URL, "/")
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	httpClient.JSONMarshal = json.Marshal
	httpClient.JSONUnmarshal = json.Unmarshal
	return &client{
		logger:   logger.WithLabel("source", "portal"),
		http:     httpClient,
		baseURL:  baseURL,
		token:    cfg.Token,
		username: cfg.Username,
		lock:     &sync.Mutex{},
	}, nil
}

type client struct {
	logger   log.Logger
	http     *resty.Client
	baseURL  string
	token    string
	username string
	lock     *sync.Mutex
}

func (c *client) URL() string {
	return c.baseURL
}

func (c *client) GetItem(ctx context.Context, id string) (*Item, error) {
	item := &Item{}
	raw := map[string]any{}
	body, err := c.get(ctx, "get item "+id, restPrefix+"/content/items/"+id, nil)
	if err != nil {
		return nil, notFoundOr(err, "item", id)
	}
	if err := decode(body, item); err != nil {
		return nil, fmt.Errorf("failed to decode item %s (%w)", id, err)
	}
	if err := decode(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode item %s (%w)", id, err)
	}
	if item.ID == "" {
		return nil, ErrNotFound{Kind: "item", ID: id}
	}
	item.Raw = raw
	return item, nil
}

func (c *client) GetItemData(ctx context.Context, id string) (any, error) {
	body, err := c.get(ctx, "get item data "+id, restPrefix+"/content/items/"+id+"/data", nil)
	if err != nil {
		return nil, notFoundOr(err, "item", id)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		// Not every item stores JSON in its data section.
		c.logger.Debugf("Item %s has non-JSON data, ignoring it.", id)
		return nil, nil
	}
	return data, nil
}

func (c *client) GetGroup(ctx context.Context, id string) (*Group, error) {
	group := &Group{}
	body, err := c.get(ctx, "get group "+id, restPrefix+"/community/groups/"+id, nil)
	if err != nil {
		return nil, notFoundOr(err, "group", id)
	}
	if err := decode(body, group); err != nil {
		return nil, fmt.Errorf("failed to decode group %s (%w)", id, err)
	}
	if group.ID == "" {
		return nil, ErrNotFound{Kind: "group", ID: id}
	}
	return group, nil
}

func (c *client) GetGroupContents(ctx context.Context, id string) ([]*Item, error) {
	var result []*Item
	start := 1
	for start > 0 {
		page := &groupContentsPage{}
		body, err := c.get(ctx, "get group contents "+id, restPrefix+"/content/groups/"+id, map[string]string{
			"start": strconv.Itoa(start),
			"num":   strconv.Itoa(groupPageSize),
		})
		if err != nil {
			return nil, notFoundOr(err, "group", id)
		}
		if err := decode(body, page); err != nil {
			return nil, fmt.Errorf("failed to decode contents of group %s (%w)", id, err)
		}
		result = append(result, page.Items...)
		if page.NextStart <= start {
			break
		}
		start = page.NextStart
	}
	return result, nil
}

func (c *client) GetService(ctx context.Context, serviceURL string) (*Service, error) {
	service := &Service{}
	raw := map[string]any{}
	body, err := c.get(ctx, "get service "+serviceURL, serviceURL, nil)
	if err != nil {
		return nil, err
	}
	if err := decode(body, service); err != nil {
		return nil, fmt.Errorf("failed to decode service %s (%w)", serviceURL, err)
	}
	if err := decode(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode service %s (%w)", serviceURL, err)
	}
	service.Raw = raw
	return service, nil
}

func (c *client) GetLayer(ctx context.Context, serviceURL string, layerID int) (map[string]any, error) {
	layerURL := strings.TrimSuffix(serviceURL, "/") + "/" + strconv.Itoa(layerID)
	body, err := c.get(ctx, "get layer "+layerURL, layerURL, nil)
	if err != nil {
		return nil, err
	}
	layer := map[string]any{}
	if err := decode(body, &layer); err != nil {
		return nil, fmt.Errorf("failed to decode layer %s (%w)", layerURL, err)
	}
	return layer, nil
}

func (c *client) AddItem(ctx context.Context, request AddItemRequest) (string, error) {
	username, err := c.getUsername(ctx)
	if err != nil {
		return "", err
	}
	form := map[string]string{
		"title":        request.Title,
		"type":         request.Type,
		"typeKeywords": strings.Join(request.TypeKeywords, ","),
		"tags":         strings.Join(request.Tags, ","),
		"snippet":      request.Snippet,
		"description":  request.Description,
	}
	if request.URL != "" {
		form["url"] = request.URL
	}
	if err := setJSONField(form, "extent", request.Extent); err != nil {
		return "", err
	}
	if err := setJSONField(form, "properties", request.Properties); err != nil {
		return "", err
	}
	if err := setJSONField(form, "text", request.Data); err != nil {
		return "", err
	}
	path := restPrefix + "/content/users/" + username
	if request.Folder != "" {
		path += "/" + request.Folder
	}
	response := &successResponse{}
	if err := c.post(ctx, "add item "+request.Title, path+"/addItem", form, response); err != nil {
		return "", err
	}
	if !response.Success || response.ID == "" {
		return "", fmt.Errorf("adding item %s did not report success", request.Title)
	}
	return response.ID, nil
}

func (c *client) UpdateItem(ctx context.Context, id string, request UpdateItemRequest) error {
	username, err := c.getUsername(ctx)
	if err != nil {
		return err
	}
	form := map[string]string{}
	if request.Title != "" {
		form["title"] = request.Title
	}
	if request.URL != "" {
		form["url"] = request.URL
	}
	if err := setJSONField(form, "properties", request.Properties); err != nil {
		return err
	}
	if err := setJSONField(form, "text", request.Data); err != nil {
		return err
	}
	response := &successResponse{}
	path := restPrefix + "/content/users/" + username + "/items/" + id + "/update"
	if err := c.post(ctx, "update item "+id, path, form, response); err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("updating item %s did not report success", id)
	}
	return nil
}

func (c *client) ShareItem(ctx context.Context, id string, groupIDs []string) error {
	if len(groupIDs) == 0 {
		return nil
	}
	username, err := c.getUsername(ctx)
	if err != nil {
		return err
	}
	path := restPrefix + "/content/users/" + username + "/items/" + id + "/share"
	return c.post(ctx, "share item "+id, path, map[string]string{
		"groups": strings.Join(groupIDs, ","),
	}, nil)
}

func (c *client) CreateGroup(ctx context.Context, request CreateGroupRequest) (string, error) {
	access := request.Access
	if access == "" {
		access = "private"
	}
	response := &successResponse{}
	err := c.post(ctx, "create group "+request.Title, restPrefix+"/community/createGroup", map[string]string{
		"title":       request.Title,
		"description": request.Description,
		"snippet":     request.Snippet,
		"tags":        strings.Join(request.Tags, ","),
		"access":      access,
	}, response)
	if err != nil {
		return "", err
	}
	if response.Group == nil || response.Group.ID == "" {
		return "", fmt.Errorf("creating group %s did not return a group", request.Title)
	}
	return response.Group.ID, nil
}

func (c *client) CreateService(ctx context.Context, request CreateServiceRequest) (*CreatedService, error) {
	username, err := c.getUsername(ctx)
	if err != nil {
		return nil, err
	}
	parameters := make(map[string]any, len(request.ServiceParameters)+1)
	for k, v := range request.ServiceParameters {
		parameters[k] = v
	}
	parameters["name"] = request.Name
	form := map[string]string{
		"outputType": "featureService",
		"tags":       strings.Join(request.Tags, ","),
	}
	if err := setJSONField(form, "createParameters", parameters); err != nil {
		return nil, err
	}
	created := &CreatedService{}
	path := restPrefix + "/content/users/" + username + "/createService"
	if err := c.post(ctx, "create service "+request.Name, path, form, created); err != nil {
		return nil, err
	}
	if created.ItemID == "" || created.ServiceURL == "" {
		return nil, fmt.Errorf("creating service %s did not return an item and URL", request.Name)
	}
	return created, nil
}

func (c *client) AddToDefinition(ctx context.Context, serviceURL string, definition map[string]any) error {
	adminURL := strings.Replace(serviceURL, "/rest/services/", "/rest/admin/services/", 1)
	form := map[string]string{}
	if err := setJSONField(form, "addToDefinition", definition); err != nil {
		return err
	}
	response := &successResponse{}
	if err := c.post(ctx, "add to definition "+serviceURL, strings.TrimSuffix(adminURL, "/")+"/addToDefinition", form, response); err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("adding layers to %s did not report success", serviceURL)
	}
	return nil
}

// getUsername returns the configured user, or looks it up from the token the first time it is needed.
func (c *client) getUsername(ctx context.Context) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.username != "" {
		return c.username, nil
	}
	body, err := c.get(ctx, "get current user", restPrefix+"/community/self", nil)
	if err != nil {
		return "", err
	}
	self := &struct {
		Username string `json:"username"`
	}{}
	if err := decode(body, self); err != nil {
		return "", fmt.Errorf("failed to decode current user (%w)", err)
	}
	if self.Username == "" {
		return "", fmt.Errorf("no username configured and the token does not belong to a user")
	}
	c.username = self.Username
	return c.username, nil
}

func (c *client) get(ctx context.Context, operation string, url string, query map[string]string) ([]byte, error) {
	c.logger.Debugf("GET %s", url)
	response, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.withDefaults(query)).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%s failed (%w)", operation, err)
	}
	return checkResponse(operation, response)
}

func (c *client) post(ctx context.Context, operation string, url string, form map[string]string, target any) error {
	c.logger.Debugf("POST %s", url)
	response, err := c.http.R().
		SetContext(ctx).
		SetFormData(c.withDefaults(form)).
		Post(url)
	if err != nil {
		return fmt.Errorf("%s failed (%w)", operation, err)
	}
	body, err := checkResponse(operation, response)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if err := decode(body, target); err != nil {
		return fmt.Errorf("failed to decode %s response (%w)", operation, err)
	}
	return nil
}

func (c *client) withDefaults(params map[string]string) map[string]string {
	result := make(map[string]string, len(params)+2)
	for k, v := range params {
		result[k] = v
	}
	result["f"] = "json"
	if c.token != "" {
		result["token"] = c.token
	}
	return result
}

// checkResponse turns HTTP failures and the error documents the portal sends with a 200 status into ErrAPI.
func checkResponse(operation string, response *resty.Response) ([]byte, error) {
	body := response.Body()
	if response.StatusCode() >= http.StatusBadRequest {
		return nil, ErrAPI{
			Operation: operation,
			Code:      response.StatusCode(),
			Message:   http.StatusText(response.StatusCode()),
		}
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body, nil
	}
	envelope := &errorEnvelope{}
	if err := json.Unmarshal(trimmed, envelope); err != nil {
		return nil, fmt.Errorf("invalid response to %s (%w)", operation, err)
	}
	if envelope.Error != nil {
		return nil, ErrAPI{
			Operation: operation,
			Code:      envelope.Error.Code,
			Message:   envelope.Error.Message,
			Details:   envelope.Error.Details,
		}
	}
	return body, nil
}

// notFoundOr maps the codes the portal uses for missing or inaccessible content to ErrNotFound.
func notFoundOr(err error, kind string, id string) error {
	var apiErr ErrAPI
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusNotFound) {
		return ErrNotFound{Kind: kind, ID: id}
	}
	return err
}

func decode(body []byte, target any) error {
	return json.Unmarshal(body, target)
}

func setJSONField(form map[string]string, key string, value any) error {
	if value == nil {
		return nil
	}
	if m, ok := value.(map[string]any); ok && m == nil {
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s (%w)", key, err)
	}
	form[key] = string(encoded)
	return nil
}

package portal

// Item is the description of a portal item as returned by the content API. Raw holds the complete document, including
// fields not mapped here.
type Item struct {
	ID           string         `json:"id"`
	Owner        string         `json:"owner"`
	Title        string         `json:"title"`
	Type         string         `json:"type"`
	TypeKeywords []string       `json:"typeKeywords"`
	Description  string         `json:"description"`
	Snippet      string         `json:"snippet"`
	Tags         []string       `json:"tags"`
	URL          string         `json:"url"`
	Access       string         `json:"access"`
	Extent       any            `json:"extent"`
	Properties   map[string]any `json:"properties"`
	Raw          map[string]any `json:"-"`
}

// Group is the description of a portal group.
type Group struct {
	ID          string   `json:"id"`
	Owner       string   `json:"owner"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Snippet     string   `json:"snippet"`
	Tags        []string `json:"tags"`
	Access      string   `json:"access"`
}

// Service is a feature service definition. Raw holds the complete definition.
type Service struct {
	Layers []ServiceLayerRef `json:"layers"`
	Tables []ServiceLayerRef `json:"tables"`
	Raw    map[string]any    `json:"-"`
}

// ServiceLayerRef is the short reference to a layer or table inside a service definition.
type ServiceLayerRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AddItemRequest describes a new item.
type AddItemRequest struct {
	Title        string
	Type         string
	TypeKeywords []string
	Tags         []string
	Snippet      string
	Description  string
	URL          string
	Extent       any
	Properties   map[string]any
	// Data is serialized as JSON into the item's data section when not nil.
	Data   any
	Folder string
}

// UpdateItemRequest describes a change to an existing item. Zero values are not sent.
type UpdateItemRequest struct {
	Title      string
	URL        string
	Properties map[string]any
	Data       any
}

// CreateGroupRequest describes a new group.
type CreateGroupRequest struct {
	Title       string
	Description string
	Snippet     string
	Tags        []string
	Access      string
}

// CreateServiceRequest describes a new hosted feature service.
type CreateServiceRequest struct {
	Name              string
	ServiceParameters map[string]any
	Tags              []string
}

// CreatedService is the response of a service creation.
type CreatedService struct {
	ItemID     string `json:"itemId"`
	ServiceURL string `json:"serviceurl"`
	Name       string `json:"name"`
}

type errorEnvelope struct {
	Error *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

type groupContentsPage struct {
	Items     []*Item `json:"items"`
	NextStart int     `json:"nextStart"`
}

type successResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Group   *Group `json:"group"`
}

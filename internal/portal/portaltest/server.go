// Package portaltest provides an in-memory ArcGIS portal for tests.
package portaltest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Username is the owner of every item created on the fake portal.
const Username = "tester"

// Server is a fake portal holding items, groups and feature services in memory.
type Server struct {
	*httptest.Server

	lock     *sync.Mutex
	items    map[string]map[string]any
	data     map[string]any
	groups   map[string]map[string]any
	contents map[string][]string
	services map[string]map[string]any
	layers   map[string]map[string]any
	shares   map[string][]string
	requests map[string]int
	failures map[string]int
}

// New starts a fake portal that is closed when the test finishes.
func New(t *testing.T) *Server {
	s := &Server{
		lock:     &sync.Mutex{},
		items:    map[string]map[string]any{},
		data:     map[string]any{},
		groups:   map[string]map[string]any{},
		contents: map[string][]string{},
		services: map[string]map[string]any{},
		layers:   map[string]map[string]any{},
		shares:   map[string][]string{},
		requests: map[string]int{},
		failures: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// NewID returns a random 32 character hexadecimal ID, the format portal items use.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AddItem stores an item with optional JSON data. The item map must contain at least "title" and "type".
func (s *Server) AddItem(id string, item map[string]any, data any) {
	s.lock.Lock()
	defer s.lock.Unlock()
	stored := copyMap(item)
	stored["id"] = id
	if _, ok := stored["owner"]; !ok {
		stored["owner"] = Username
	}
	s.items[id] = stored
	if data != nil {
		s.data[id] = data
	}
}

// AddGroup stores a group with the IDs of the items shared to it.
func (s *Server) AddGroup(id string, title string, itemIDs ...string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.groups[id] = map[string]any{"id": id, "title": title, "owner": Username, "access": "private"}
	s.contents[id] = itemIDs
}

// AddService registers a feature service definition at the path, with layer definitions keyed by layer ID. It
// returns the absolute service URL.
func (s *Server) AddService(path string, definition map[string]any, layers map[int]map[string]any) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	serviceURL := s.URL + path
	s.services[path] = copyMap(definition)
	for id, layer := range layers {
		s.layers[path+"/"+strconv.Itoa(id)] = copyMap(layer)
	}
	return serviceURL
}

// FailNext makes the next requests to the path prefix fail with an HTTP 500.
func (s *Server) FailNext(pathPrefix string, count int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failures[pathPrefix] = count
}

// Requests returns how many requests were made to the exact path.
func (s *Server) Requests(path string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.requests[path]
}

// Item returns a copy of a stored item.
func (s *Server) Item(id string) (map[string]any, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return copyMap(item), true
}

// Data returns the stored data of an item.
func (s *Server) Data(id string) any {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.data[id]
}

// ItemsOfType returns the IDs of all items of the type, in no particular order.
func (s *Server) ItemsOfType(itemType string) []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	var result []string
	for id, item := range s.items {
		if item["type"] == itemType {
			result = append(result, id)
		}
	}
	return result
}

// Group returns a copy of a stored group.
func (s *Server) Group(id string) (map[string]any, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, false
	}
	return copyMap(group), true
}

// GroupIDs returns the IDs of all groups.
func (s *Server) GroupIDs() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	result := make([]string, 0, len(s.groups))
	for id := range s.groups {
		result = append(result, id)
	}
	return result
}

// SharedWith returns the groups an item was shared with through the share endpoint.
func (s *Server) SharedWith(id string) []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.shares[id]...)
}

// ServiceDefinition returns the stored definition of a service path.
func (s *Server) ServiceDefinition(path string) (map[string]any, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	definition, ok := s.services[path]
	if !ok {
		return nil, false
	}
	return copyMap(definition), true
}

//nolint:funlen,gocognit,gocyclo
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	path := r.URL.Path
	s.requests[path]++
	for prefix, count := range s.failures {
		if count > 0 && strings.HasPrefix(path, prefix) {
			s.failures[prefix] = count - 1
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	segments := strings.Split(strings.TrimPrefix(path, "/sharing/rest/"), "/")
	switch {
	case strings.HasPrefix(path, "/sharing/rest/content/items/"):
		id := segments[2]
		item, ok := s.items[id]
		if !ok {
			writeError(w, 400, "Item does not exist or is inaccessible.")
			return
		}
		if len(segments) > 3 && segments[3] == "data" {
			data, ok := s.data[id]
			if !ok {
				return
			}
			writeJSON(w, data)
			return
		}
		writeJSON(w, item)
	case strings.HasPrefix(path, "/sharing/rest/community/groups/"):
		group, ok := s.groups[segments[2]]
		if !ok {
			writeError(w, 400, "Group does not exist or is inaccessible.")
			return
		}
		writeJSON(w, group)
	case strings.HasPrefix(path, "/sharing/rest/content/groups/"):
		ids, ok := s.contents[segments[2]]
		if !ok {
			writeError(w, 400, "Group does not exist or is inaccessible.")
			return
		}
		start, _ := strconv.Atoi(r.Form.Get("start"))
		num, _ := strconv.Atoi(r.Form.Get("num"))
		if start < 1 {
			start = 1
		}
		if num < 1 {
			num = 10
		}
		end := start - 1 + num
		if end > len(ids) {
			end = len(ids)
		}
		items := []map[string]any{}
		if start-1 < len(ids) {
			for _, id := range ids[start-1 : end] {
				if item, ok := s.items[id]; ok {
					items = append(items, item)
				}
			}
		}
		nextStart := -1
		if end < len(ids) {
			nextStart = end + 1
		}
		writeJSON(w, map[string]any{"items": items, "nextStart": nextStart, "total": len(ids)})
	case path == "/sharing/rest/community/self":
		writeJSON(w, map[string]any{"username": Username})
	case path == "/sharing/rest/community/createGroup":
		id := NewID()
		s.groups[id] = map[string]any{
			"id":     id,
			"title":  r.Form.Get("title"),
			"owner":  Username,
			"access": r.Form.Get("access"),
			"tags":   splitList(r.Form.Get("tags")),
		}
		s.contents[id] = nil
		writeJSON(w, map[string]any{"success": true, "group": s.groups[id]})
	case strings.HasPrefix(path, "/sharing/rest/content/users/"):
		action := segments[len(segments)-1]
		switch action {
		case "addItem":
			id := NewID()
			item := map[string]any{
				"id":           id,
				"owner":        Username,
				"title":        r.Form.Get("title"),
				"type":         r.Form.Get("type"),
				"typeKeywords": splitList(r.Form.Get("typeKeywords")),
				"tags":         splitList(r.Form.Get("tags")),
				"snippet":      r.Form.Get("snippet"),
				"description":  r.Form.Get("description"),
				"url":          r.Form.Get("url"),
			}
			if properties := r.Form.Get("properties"); properties != "" {
				var decoded any
				_ = json.Unmarshal([]byte(properties), &decoded)
				item["properties"] = decoded
			}
			s.items[id] = item
			if text := r.Form.Get("text"); text != "" {
				var decoded any
				if err := json.Unmarshal([]byte(text), &decoded); err != nil {
					writeError(w, 400, "invalid text")
					return
				}
				s.data[id] = decoded
			}
			writeJSON(w, map[string]any{"success": true, "id": id})
		case "update":
			id := segments[len(segments)-2]
			item, ok := s.items[id]
			if !ok {
				writeError(w, 400, "Item does not exist or is inaccessible.")
				return
			}
			if title := r.Form.Get("title"); title != "" {
				item["title"] = title
			}
			if u := r.Form.Get("url"); u != "" {
				item["url"] = u
			}
			if text := r.Form.Get("text"); text != "" {
				var decoded any
				if err := json.Unmarshal([]byte(text), &decoded); err != nil {
					writeError(w, 400, "invalid text")
					return
				}
				s.data[id] = decoded
			}
			writeJSON(w, map[string]any{"success": true, "id": id})
		case "share":
			id := segments[len(segments)-2]
			groups := splitList(r.Form.Get("groups"))
			s.shares[id] = append(s.shares[id], groups...)
			for _, group := range groups {
				s.contents[group] = append(s.contents[group], id)
			}
			writeJSON(w, map[string]any{"notSharedWith": []string{}, "itemId": id})
		case "createService":
			parameters := map[string]any{}
			if err := json.Unmarshal([]byte(r.Form.Get("createParameters")), &parameters); err != nil {
				writeError(w, 400, "invalid createParameters")
				return
			}
			name, _ := parameters["name"].(string)
			id := NewID()
			servicePath := "/rest/services/" + name + "_" + id[:6] + "/FeatureServer"
			serviceURL := s.URL + servicePath
			parameters["layers"] = []any{}
			parameters["tables"] = []any{}
			s.services[servicePath] = parameters
			s.items[id] = map[string]any{
				"id":    id,
				"owner": Username,
				"title": name,
				"type":  "Feature Service",
				"url":   serviceURL,
				"tags":  splitList(r.Form.Get("tags")),
			}
			writeJSON(w, map[string]any{"success": true, "itemId": id, "serviceurl": serviceURL, "name": name})
		default:
			writeError(w, 400, "unsupported operation "+action)
		}
	case strings.HasPrefix(path, "/rest/admin/services/") && strings.HasSuffix(path, "/addToDefinition"):
		servicePath := strings.TrimSuffix(strings.Replace(path, "/rest/admin/services/", "/rest/services/", 1), "/addToDefinition")
		service, ok := s.services[servicePath]
		if !ok {
			writeError(w, 404, "Service not found")
			return
		}
		definition := map[string]any{}
		if err := json.Unmarshal([]byte(r.Form.Get("addToDefinition")), &definition); err != nil {
			writeError(w, 400, "invalid addToDefinition")
			return
		}
		for _, kind := range []string{"layers", "tables"} {
			added, _ := definition[kind].([]any)
			existing, _ := service[kind].([]any)
			for _, layer := range added {
				layerMap, _ := layer.(map[string]any)
				existing = append(existing, map[string]any{"id": layerMap["id"], "name": layerMap["name"]})
				if id, ok := layerMap["id"].(float64); ok {
					s.layers[servicePath+"/"+strconv.Itoa(int(id))] = layerMap
				}
			}
			service[kind] = existing
		}
		writeJSON(w, map[string]any{"success": true})
	case strings.HasPrefix(path, "/rest/services/"):
		if definition, ok := s.services[path]; ok {
			writeJSON(w, definition)
			return
		}
		if layer, ok := s.layers[path]; ok {
			writeJSON(w, layer)
			return
		}
		writeError(w, 404, "Service not found")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	encoded, err := json.Marshal(value)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(encoded)
}

// writeError answers like the portal does, with a 200 status and an error document.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"details": []string{},
		},
	})
}

func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}

func copyMap(source map[string]any) map[string]any {
	result := make(map[string]any, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

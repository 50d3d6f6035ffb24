package deploy_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.arcalot.io/assert"
	"go.arcalot.io/log/v2"
	"go.solutions.arcgis.dev/engine/internal/deploy"
	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/handler/registry"
	"go.solutions.arcgis.dev/engine/internal/portal"
	"go.solutions.arcgis.dev/engine/internal/sequence"
	"go.solutions.arcgis.dev/engine/internal/template"
	"go.solutions.arcgis.dev/engine/internal/templatize"
)

const typeFake = "Fake"

// recordingHandler creates items named new-<id> and records the calls it receives.
type recordingHandler struct {
	events []string
	// seen records the dictionary size at creation of each item.
	seen map[string]int
	fail string
}

func (r *recordingHandler) ItemTypes() []string {
	return []string{typeFake, template.TypeGroup}
}

func (r *recordingHandler) ConvertItemToTemplate(_ context.Context, _ *portal.Item) (*template.Template, error) {
	return nil, fmt.Errorf("not implemented")
}

func (r *recordingHandler) CreateItemFromTemplate(
	_ context.Context,
	tmpl *template.Template,
	dict templatize.Dictionary,
) (*handler.Created, error) {
	if tmpl.ItemID == r.fail {
		return nil, fmt.Errorf("creation failed")
	}
	for _, dependency := range tmpl.Dependencies {
		if _, ok := dict.Lookup(template.BaseID(dependency)); !ok {
			return nil, fmt.Errorf("dependency %s of %s not created yet", dependency, tmpl.ItemID)
		}
	}
	r.events = append(r.events, "create "+tmpl.ItemID)
	r.seen[tmpl.ItemID] = len(dict)
	return &handler.Created{ItemID: "new-" + tmpl.ItemID, Type: tmpl.Type}, nil
}

func (r *recordingHandler) PostProcess(
	_ context.Context,
	tmpl *template.Template,
	created *handler.Created,
	dict templatize.Dictionary,
) error {
	r.events = append(r.events, "post "+tmpl.ItemID)
	if len(dict) != len(r.seen) {
		return fmt.Errorf("post-processing %s before every item was created", created.ItemID)
	}
	return nil
}

type recordingSharer struct {
	shares map[string][]string
}

func (r *recordingSharer) ShareItem(_ context.Context, id string, groupIDs []string) error {
	r.shares[id] = append(r.shares[id], groupIDs...)
	return nil
}

func newDeployer(t *testing.T) (deploy.Deployer, *recordingHandler, *recordingSharer) {
	h := &recordingHandler{seen: map[string]int{}}
	r, err := registry.New(h)
	assert.NoError(t, err)
	s := &recordingSharer{shares: map[string][]string{}}
	return deploy.New(log.NewLogger(log.LevelDebug, log.NewTestWriter(t)), r, s), h, s
}

func newTemplate(id string, itemType string, dependencies ...string) *template.Template {
	tmpl := template.New(id, itemType)
	tmpl.Dependencies = dependencies
	return tmpl
}

func TestDeployOrder(t *testing.T) {
	d, h, _ := newDeployer(t)
	result, err := d.Deploy(context.Background(), []*template.Template{
		newTemplate("A", typeFake, "B", "C"),
		newTemplate("B", typeFake, "D"),
		newTemplate("C", typeFake, "D"),
		newTemplate("D", typeFake),
	})
	assert.NoError(t, err)
	assert.Equals(t, result.BuildOrder, []string{"D", "B", "C", "A"})
	assert.Equals(t, h.events, []string{
		"create D", "create B", "create C", "create A",
		"post D", "post B", "post C", "post A",
	})
	assert.Equals(t, h.seen["A"], 3)
	assert.Equals(t, result.Dictionary["A"].ItemID, "new-A")
	assert.Equals(t, result.Created["D"].ItemID, "new-D")
}

func TestDeployCycle(t *testing.T) {
	d, h, _ := newDeployer(t)
	_, err := d.Deploy(context.Background(), []*template.Template{
		newTemplate("A", typeFake, "B"),
		newTemplate("B", typeFake, "A"),
		newTemplate("C", typeFake),
	})
	assert.Error(t, err)
	var cycleErr sequence.ErrCyclicDependency
	assert.Equals(t, errors.As(err, &cycleErr), true)
	assert.Equals(t, cycleErr.IDs, []string{"A", "B"})
	assert.Equals(t, len(h.events), 0)
}

func TestDeployUnsupportedType(t *testing.T) {
	d, h, _ := newDeployer(t)
	_, err := d.Deploy(context.Background(), []*template.Template{
		newTemplate("A", typeFake),
		newTemplate("B", "Velocity Feed"),
	})
	assert.Error(t, err)
	var notFound *handler.ErrHandlerNotFound
	assert.Equals(t, errors.As(err, &notFound), true)
	assert.Equals(t, len(h.events), 0)
}

func TestDeployDuplicates(t *testing.T) {
	d, h, _ := newDeployer(t)
	result, err := d.Deploy(context.Background(), []*template.Template{
		newTemplate("A", typeFake, "B"),
		newTemplate("B", typeFake),
		newTemplate("A", typeFake),
	})
	assert.NoError(t, err)
	assert.Equals(t, result.BuildOrder, []string{"B", "A"})
	assert.Equals(t, len(result.Created), 2)
	assert.Equals(t, h.events[:2], []string{"create B", "create A"})
}

func TestDeployShareWithGroups(t *testing.T) {
	d, _, s := newDeployer(t)
	item := newTemplate("A", typeFake)
	item.Groups = []string{"G", "missing"}
	result, err := d.Deploy(context.Background(), []*template.Template{
		item,
		newTemplate("G", template.TypeGroup),
	})
	assert.NoError(t, err)
	assert.Equals(t, result.BuildOrder, []string{"A", "G"})
	assert.Equals(t, s.shares, map[string][]string{"new-A": {"new-G"}})
}

func TestDeployFailureKeepsPartialResult(t *testing.T) {
	d, h, _ := newDeployer(t)
	h.fail = "A"
	result, err := d.Deploy(context.Background(), []*template.Template{
		newTemplate("A", typeFake, "B"),
		newTemplate("B", typeFake),
	})
	assert.Error(t, err)
	assert.NotNil(t, result)
	assert.Equals(t, result.Dictionary["B"].ItemID, "new-B")
}

func TestDeployCancelled(t *testing.T) {
	d, h, _ := newDeployer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Deploy(ctx, []*template.Template{newTemplate("A", typeFake)})
	assert.Error(t, err)
	assert.Equals(t, errors.Is(err, context.Canceled), true)
	assert.Equals(t, len(h.events), 0)
}

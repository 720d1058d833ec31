package catalog

import (
	"errors"
	"testing"

	"github.com/threadline/production-tracker/types"
)

func TestCatalogListOrder(t *testing.T) {
	cat := NewCatalog([]types.WorkflowDefinition{
		{ID: "sewing", Name: "Sewing", CreatedAt: 20},
		{ID: "cutting", Name: "Cutting", CreatedAt: 10},
		{ID: "qc", Name: "Quality Control", CreatedAt: 20},
	})

	got := cat.List()
	want := []string{"cutting", "qc", "sewing"}
	if len(got) != len(want) {
		t.Fatalf("len %d", len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("list order: got %s at %d, want %s", got[i].ID, i, id)
		}
	}
}

func TestCatalogGet(t *testing.T) {
	cat := NewCatalog([]types.WorkflowDefinition{{ID: "cutting", Name: "Cutting"}})

	wf, err := cat.Get("cutting")
	if err != nil || wf.Name != "Cutting" {
		t.Fatalf("get: %v %+v", err, wf)
	}
	_, err = cat.Get("embroidery")
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("want ErrWorkflowNotFound, got %v", err)
	}
}

func TestRoster(t *testing.T) {
	ros := NewRoster([]types.Employee{
		{ID: "e1", Name: "Binh", Role: types.RoleWorker},
		{ID: "e2", Name: "Hanh", Role: types.RoleQC},
	})

	if _, err := ros.Get("e1"); err != nil {
		t.Fatal(err)
	}
	if _, err := ros.Get("ghost"); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("want ErrEmployeeNotFound, got %v", err)
	}

	// Membership is the only eligibility constraint; the workflow id
	// does not restrict.
	if !ros.IsEligible("e2", "any-workflow") {
		t.Error("roster member should be eligible")
	}
	if ros.IsEligible("ghost", "any-workflow") {
		t.Error("non-member should not be eligible")
	}
}

func TestRosterKnown(t *testing.T) {
	ros := NewRoster([]types.Employee{{ID: "e1"}, {ID: "e2"}})

	got := ros.Known(types.NewEmployeeSet("e1", "ghost", "e2"))
	if !got.Equal(types.NewEmployeeSet("e1", "e2")) {
		t.Fatalf("known subset: %v", got.IDs())
	}
}

package types

import (
	"encoding/json"
	"testing"
)

func TestEmployeeSetJSON(t *testing.T) {
	set := NewEmployeeSet("e1", "e2")
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode presence map: %v", err)
	}
	if len(m) != 2 || !m["e1"] || !m["e2"] {
		t.Fatalf("presence map: %v", m)
	}

	var back EmployeeSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(set) {
		t.Fatalf("roundtrip: %v", back.IDs())
	}
}

func TestEmployeeSetUnmarshalDropsFalse(t *testing.T) {
	var set EmployeeSet
	if err := json.Unmarshal([]byte(`{"e1":true,"e2":false}`), &set); err != nil {
		t.Fatal(err)
	}
	if set.Len() != 1 || !set.Has("e1") {
		t.Fatalf("false entries should be dropped: %v", set.IDs())
	}
}

func TestOrderCloneIsDeep(t *testing.T) {
	order := ProductionOrder{
		ID: "o1",
		Products: map[string]ProductEntry{
			"p1": {
				ProductID: "p1",
				Quantity:  5,
				Steps: []StepProgress{
					{StepID: 1, Status: StepPending, AssignedEmployees: NewEmployeeSet("e1")},
				},
			},
		},
	}
	clone := order.Clone()

	p := clone.Products["p1"]
	p.Steps[0].Status = StepInProgress
	p.Steps[0].CompletedQuantity = 3
	p.Steps[0].AssignedEmployees.Add("e2")
	clone.Products["p1"] = p

	orig := order.Products["p1"].Steps[0]
	if orig.Status != StepPending || orig.CompletedQuantity != 0 {
		t.Fatalf("clone aliased step state: %+v", orig)
	}
	if orig.AssignedEmployees.Has("e2") {
		t.Fatal("clone aliased employee set")
	}
}

func TestStepStatusValid(t *testing.T) {
	for _, s := range []StepStatus{StepPending, StepInProgress, StepCompleted} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if StepStatus("done").Valid() {
		t.Error("unknown status accepted")
	}
}

package payment

import "testing"

func TestStepsUpsertReplacesByID(t *testing.T) {
	var steps Steps
	steps = steps.Upsert(NewStep(StepInitiate, StepCompleted))
	steps = steps.Upsert(NewStep(StepComplianceScreen, StepProcessing))

	// Re-entrant update: same id must replace, not duplicate.
	screen := NewStep(StepComplianceScreen, StepCompleted)
	screen.Details = "approved"
	steps = steps.Upsert(screen)

	if len(steps) != 2 {
		t.Fatalf("upsert 不应产生重复步骤, 长度 %d", len(steps))
	}
	got, ok := steps.Get(string(StepComplianceScreen))
	if !ok {
		t.Fatal("step not found")
	}
	if got.Status != StepCompleted || got.Details != "approved" {
		t.Fatalf("step not replaced: %+v", got)
	}
}

func TestStepsPreserveInsertionOrder(t *testing.T) {
	var steps Steps
	for _, name := range StepOrder {
		steps = steps.Upsert(NewStep(name, StepPending))
	}
	// Update the middle step; order must not change.
	steps = steps.Upsert(NewStep(StepBlockchainTransfer, StepCompleted))

	for i, name := range StepOrder {
		if steps[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, steps[i].Name)
		}
	}
}

func TestStepPosition(t *testing.T) {
	if StepPosition(StepInitiate) != 0 {
		t.Fatal("INITIATE should be first")
	}
	if StepPosition(StepComplete) != len(StepOrder)-1 {
		t.Fatal("COMPLETE should be last")
	}
	if StepPosition("BOGUS") != -1 {
		t.Fatal("unknown step should be -1")
	}
}

func TestStatusCancellable(t *testing.T) {
	cancellable := []Status{StatusCreated, StatusKYCPending, StatusComplianceReview}
	for _, s := range cancellable {
		if !s.Cancellable() {
			t.Fatalf("%s 应允许取消", s)
		}
	}

	frozen := []Status{StatusProcessing, StatusBlockchainPending, StatusConverting, StatusSettling, StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range frozen {
		if s.Cancellable() {
			t.Fatalf("%s 不应允许取消", s)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if StatusProcessing.Terminal() {
		t.Fatal("PROCESSING is not terminal")
	}
}

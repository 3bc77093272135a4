package query

import (
	"testing"

	"canvas-backend/internal/metadata"
)

func TestOperatorsFor_Text(t *testing.T) {
	ops := OperatorsFor(metadata.TypeText)
	if len(ops) == 0 {
		t.Fatal("expected operators for text")
	}
	for _, op := range []Operator{OpContains, OpStartsWith, OpEndsWith, OpIsEmpty, OpIsNotEmpty} {
		if !AllowedOperator(metadata.TypeText, op) {
			t.Fatalf("expected %s allowed for text", op)
		}
	}
	// No ordering comparisons on text
	for _, op := range []Operator{OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual} {
		if AllowedOperator(metadata.TypeText, op) {
			t.Fatalf("expected %s rejected for text", op)
		}
	}
}

func TestOperatorsFor_OrderedTypes(t *testing.T) {
	for _, pt := range []metadata.PropertyType{
		metadata.TypeNumber, metadata.TypeDate, metadata.TypeDateTime, metadata.TypeTime,
	} {
		for _, op := range []Operator{OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual} {
			if !AllowedOperator(pt, op) {
				t.Fatalf("expected %s allowed for %s", op, pt)
			}
		}
		// No substring matching outside text
		for _, op := range []Operator{OpContains, OpStartsWith, OpEndsWith} {
			if AllowedOperator(pt, op) {
				t.Fatalf("expected %s rejected for %s", op, pt)
			}
		}
	}
}

func TestOperatorsFor_Boolean(t *testing.T) {
	ops := OperatorsFor(metadata.TypeBoolean)
	if len(ops) != 2 {
		t.Fatalf("expected exactly 2 boolean operators, got %d", len(ops))
	}
	if ops[0] != OpEquals || ops[1] != OpNotEquals {
		t.Fatalf("expected [equals not_equals], got %v", ops)
	}
}

func TestOperatorsFor_EntityReference(t *testing.T) {
	if ops := OperatorsFor(metadata.TypeEntity); len(ops) != 0 {
		t.Fatalf("expected no operators for entity references, got %v", ops)
	}
	if _, ok := DefaultOperator(metadata.TypeEntity); ok {
		t.Fatal("expected no default operator for entity references")
	}
}

func TestDefaultOperator_IsEquals(t *testing.T) {
	for _, pt := range []metadata.PropertyType{
		metadata.TypeText, metadata.TypeNumber, metadata.TypeBoolean,
		metadata.TypeDate, metadata.TypeDateTime, metadata.TypeTime,
	} {
		op, ok := DefaultOperator(pt)
		if !ok {
			t.Fatalf("expected a default operator for %s", pt)
		}
		if op != OpEquals {
			t.Fatalf("expected equals default for %s, got %s", pt, op)
		}
	}
}

func TestNeedsValue(t *testing.T) {
	if NeedsValue(OpIsEmpty) || NeedsValue(OpIsNotEmpty) {
		t.Fatal("is_empty and is_not_empty must not require a value")
	}
	for _, op := range []Operator{OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessOrEqual} {
		if !NeedsValue(op) {
			t.Fatalf("expected %s to require a value", op)
		}
	}
}

func TestGroupOperator_Valid(t *testing.T) {
	if !GroupAnd.Valid() || !GroupOr.Valid() {
		t.Fatal("AND and OR must be valid")
	}
	if GroupOperator("XOR").Valid() || GroupOperator("and").Valid() {
		t.Fatal("only uppercase AND and OR are valid")
	}
}

package bsoncore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDocumentElementsKeysInOrder(t *testing.T) {
	idx, dst := AppendDocumentStart(nil)
	dst = AppendStringElement(dst, "name", "ada")
	dst = AppendInt32Element(dst, "age", 36)
	dst = AppendDocumentEnd(dst, idx)

	elems, err := Document(dst).Elements()
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}

	var keys []string
	for _, e := range elems {
		keys = append(keys, e.Key())
	}

	want := []string{"name", "age"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("element key order mismatch (-want +got):\n%s", diff)
	}
}

package kv

import "testing"

func TestCompareEntriesOrdersByKeyThenDescendingSeq(t *testing.T) {
	cmp := BytewiseComparator{}

	a := KeyValue{Key: []byte("a"), Seq: 1}
	b := KeyValue{Key: []byte("b"), Seq: 1}
	if CompareEntries(cmp, a, b) >= 0 {
		t.Fatalf("expected a < b")
	}

	high := KeyValue{Key: []byte("k"), Seq: 5}
	low := KeyValue{Key: []byte("k"), Seq: 2}
	if CompareEntries(cmp, high, low) >= 0 {
		t.Fatalf("expected higher seq to sort first")
	}
	if CompareEntries(cmp, low, high) <= 0 {
		t.Fatalf("expected lower seq to sort after higher seq")
	}
	if CompareEntries(cmp, high, high) != 0 {
		t.Fatalf("expected equal entries to compare equal")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := KeyValue{Key: []byte("k"), Value: []byte("v"), Seq: 1}
	clone := orig.Clone()
	clone.Key[0] = 'z'
	clone.Value[0] = 'z'
	if orig.Key[0] != 'k' || orig.Value[0] != 'v' {
		t.Fatalf("mutating clone affected original")
	}
}

func TestLastValueWinsMerge(t *testing.T) {
	m := LastValueWins{}
	group := []KeyValue{
		{Key: []byte("k"), Seq: 1, Kind: KindAdd, Value: []byte("A")},
		{Key: []byte("k"), Seq: 3, Kind: KindAdd, Value: []byte("B")},
		{Key: []byte("k"), Seq: 2, Kind: KindAdd, Value: []byte("C")},
	}
	out, ok := m.Merge(group)
	if !ok {
		t.Fatalf("expected a result")
	}
	if string(out.Value) != "B" {
		t.Fatalf("expected highest-seq value B, got %q", out.Value)
	}

	if _, ok := m.Merge(nil); ok {
		t.Fatalf("expected empty group to yield no result")
	}
}

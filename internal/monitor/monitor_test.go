package monitor

import "testing"

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Observe(Snapshot{Layer: "a", Step: 1})
	r.Observe(Snapshot{Layer: "b", Step: 1})
	r.Observe(Snapshot{Layer: "a", Step: 2})

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	got := r.Layer("a")
	if len(got) != 2 || got[0].Step != 1 || got[1].Step != 2 {
		t.Errorf("Layer(a) = %+v, want steps 1 and 2", got)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", r.Len())
	}
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	m := Multi(&a, nil, &b)
	m.Observe(Snapshot{Layer: "x"})

	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("Multi delivered %d and %d snapshots, want 1 and 1", a.Len(), b.Len())
	}
}

func TestMulti_EmptyIsNop(t *testing.T) {
	m := Multi()
	// must not panic
	m.Observe(Snapshot{Layer: "x"})
}

func TestFunc(t *testing.T) {
	var got string
	Func(func(s Snapshot) { got = s.Layer }).Observe(Snapshot{Layer: "hidden"})
	if got != "hidden" {
		t.Errorf("Func observed layer %q, want %q", got, "hidden")
	}
}

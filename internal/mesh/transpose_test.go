package mesh

import (
	"errors"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestTranspose_ApplyMatchesForwardTranspose(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	snd := newSender("lower", 0, 0)
	rcv := newSender("upper", 0, 0, 0)

	fwd := NewDense("fwd", snd, rcv.Len(), DefaultParams(), seeded())
	fb := NewTranspose("fb", fwd, rcv, 0.2)

	for trial := 0; trial < 20; trial++ {
		// random forward state
		if trial%2 == 1 {
			delta := mat.NewDense(3, 2, nil)
			for i := 0; i < 3; i++ {
				for j := 0; j < 2; j++ {
					delta.Set(i, j, rng.Float64()-0.5)
				}
			}
			if err := fwd.Update(delta); err != nil {
				t.Fatalf("Update failed: %v", err)
			}
		}
		snd.avg = rng.Float64()
		fwd.Rescale(1 + rng.Float64())

		v := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		rcv.act = v

		w := fwd.Get()
		size := fwd.Size()
		want := make([]float64, size)
		for j := 0; j < size; j++ {
			for i := 0; i < size; i++ {
				want[j] += w.At(i, j) * v[i]
			}
			want[j] *= 0.2 * fwd.Scale()
		}

		got := fb.Apply()
		if len(got) != size {
			t.Fatalf("Apply() returned %d values, want %d", len(got), size)
		}
		for j := range want {
			if !approxEqual(got[j], want[j], 1e-12) {
				t.Errorf("trial %d: Apply()[%d] = %v, want %v", trial, j, got[j], want[j])
			}
		}
	}
}

func TestTranspose_GetIsScaledTranspose(t *testing.T) {
	snd := newSender("lower", 0, 0)
	rcv := newSender("upper", 0, 0)
	fwd := NewDense("fwd", snd, 2, DefaultParams(), seeded())
	if err := fwd.Set(mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4})); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	fb := NewTranspose("fb", fwd, rcv, 0.5)

	want := mat.NewDense(2, 2, []float64{0.1, 0.3, 0.2, 0.4})
	want.Scale(0.5*fwd.Scale(), want)
	if got := fb.Get(); !mat.EqualApprox(got, want, 1e-12) {
		t.Errorf("Get() = %v, want %v", mat.Formatted(got), mat.Formatted(want))
	}
}

func TestTranspose_UpdateLeavesForwardUnchanged(t *testing.T) {
	fwd := NewDense("fwd", newSender("lower", 0, 0), 2, DefaultParams(), seeded())
	fb := NewTranspose("fb", fwd, newSender("upper", 0, 0), 0.2)

	before := fwd.Get()
	if err := fb.Update(mat.NewDense(2, 2, []float64{5, 5, 5, 5})); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !mat.Equal(before, fwd.Get()) {
		t.Error("transpose Update changed the forward mesh")
	}
	if fb.Trainable() {
		t.Error("transpose mesh reports trainable")
	}
}

func TestTranspose_SetIsReadOnly(t *testing.T) {
	fwd := NewDense("fwd", newSender("lower", 0), 1, DefaultParams(), seeded())
	fb := NewTranspose("fb", fwd, newSender("upper", 0), 0.2)
	if err := fb.Set(mat.NewDense(1, 1, []float64{0.5})); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set() error = %v, want %v", err, ErrReadOnly)
	}
}

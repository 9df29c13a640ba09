package controller

import "testing"

func pressed(indices ...Button) [8]bool {
	var b [8]bool
	for _, i := range indices {
		b[i] = true
	}
	return b
}

func TestReadOrderIsAThroughRight(t *testing.T) {
	c := New()
	c.SetButtons(pressed(A, Start, Right))
	c.Write(1) // strobe high, latches continuously
	c.Write(0) // falling edge freezes the latch

	want := []uint8{1, 0, 0, 1, 0, 0, 0, 1} // A B Select Start Up Down Left Right
	for i, w := range want {
		if got := c.Read(); got != w {
			t.Fatalf("read %d = %d, want %d", i, got, w)
		}
	}
}

func TestReadsPastEightReturnOne(t *testing.T) {
	c := New()
	c.SetButtons(pressed(A))
	c.Write(1)
	c.Write(0)
	for i := 0; i < 8; i++ {
		c.Read()
	}
	for i := 0; i < 3; i++ {
		if got := c.Read(); got != 1 {
			t.Fatalf("read past bit 8 = %d, want 1", got)
		}
	}
}

func TestStrobeHighContinuouslyReloadsFromButtonA(t *testing.T) {
	c := New()
	c.SetButtons(pressed(A))
	c.Write(1)
	if got := c.Read(); got != 1 {
		t.Fatalf("first read with A held and strobe high = %d, want 1", got)
	}
	if got := c.Read(); got != 1 {
		t.Fatalf("strobe held high should keep returning button A's state, got %d", got)
	}
	c.SetButtons(pressed()) // release A while strobe is still high
	if got := c.Read(); got != 0 {
		t.Fatalf("strobe-high read should reflect the just-released A, got %d", got)
	}
}

func TestResetClearsLatchAndButtons(t *testing.T) {
	c := New()
	c.SetButtons(pressed(A, B))
	c.Write(1)
	c.Write(0)
	c.Reset()
	if got := c.Read(); got != 0 {
		t.Fatalf("after Reset the latch should report no buttons held, got %d", got)
	}
}

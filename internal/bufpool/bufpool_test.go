package bufpool

import "testing"

func TestGetReturnsZeroedBuffer(t *testing.T) {
	p := New(16)
	buf := p.Get()
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}
	buf[0] = 0xff
	p.Put(buf)

	buf2 := p.Get()
	if buf2[0] != 0 {
		t.Fatalf("expected zeroed buffer on reuse, got %d", buf2[0])
	}
}

func TestPutRejectsWrongSize(t *testing.T) {
	p := New(16)
	p.Put(make([]byte, 8)) // should be silently dropped, not panic
}

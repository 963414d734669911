package bits

import "testing"

func TestSetClearToggleTest(t *testing.T) {
	var b uint8
	Set(uint8(0b0000_0001), &b)
	if !Test(0b0000_0001, b) {
		t.Fatalf("Set did not set bit, got %08b", b)
	}

	Set(uint8(0b0010_0000), &b)
	Clear(uint8(0b0000_0001), &b)
	if Test(0b0000_0001, b) {
		t.Fatalf("Clear did not clear bit, got %08b", b)
	}
	if !Test(0b0010_0000, b) {
		t.Fatalf("Clear touched an unrelated bit, got %08b", b)
	}

	before := b
	Toggle(uint8(0b0010_0000), &b)
	if b == before {
		t.Fatalf("Toggle did not flip bit, got %08b", b)
	}
	Toggle(uint8(0b0010_0000), &b)
	if b != before {
		t.Fatalf("Toggle twice did not restore original value, got %08b want %08b", b, before)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		mask uint8
		src  uint8
		want uint8
	}{
		{"rcode nibble", 0b0000_1111, 0b1010_0011, 0b0000_0011},
		{"opcode bits", 0b0111_1000, 0b0101_1000, 0b0101_1000},
		{"no overlap", 0b0000_0001, 0b1111_1110, 0},
	}
	for _, tt := range tests {
		if got := Extract(tt.mask, tt.src); got != tt.want {
			t.Errorf("%s: Extract(%08b, %08b) = %08b, want %08b", tt.name, tt.mask, tt.src, got, tt.want)
		}
	}
}

func TestCheckedAt(t *testing.T) {
	buf := []byte{1, 2, 3}

	if v, err := CheckedAt(buf, 1); err != nil || v != 2 {
		t.Fatalf("CheckedAt(1) = %v, %v; want 2, nil", v, err)
	}

	if _, err := CheckedAt(buf, 3); err == nil {
		t.Fatal("CheckedAt(3) should fail on a 3-byte buffer")
	}

	if _, err := CheckedAt(buf, -1); err == nil {
		t.Fatal("CheckedAt(-1) should fail")
	}
}

func TestCheckedSlice(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}

	got, err := CheckedSlice(buf, 1, 3)
	if err != nil {
		t.Fatalf("CheckedSlice(1,3) failed: %v", err)
	}
	want := []byte{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("CheckedSlice(1,3) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("CheckedSlice(1,3)[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if _, err := CheckedSlice(buf, 3, 4); err == nil {
		t.Fatal("CheckedSlice(3,4) should fail: reads past the end of a 5-byte buffer")
	}
}

package wire

import "testing"

func TestFlagsRoundTrip(t *testing.T) {
	var f Flags
	f.SetQR(true)
	f.SetOpcode(2)
	f.SetAA(true)
	f.SetTC(false)
	f.SetRD(true)
	f.SetRA(true)
	f.SetRCODE(3)

	b1, b2 := f.Bytes()
	got := DecodeFlags(b1, b2)

	if !got.QR() {
		t.Error("QR() = false, want true")
	}
	if got.Opcode() != 2 {
		t.Errorf("Opcode() = %d, want 2", got.Opcode())
	}
	if !got.AA() {
		t.Error("AA() = false, want true")
	}
	if got.TC() {
		t.Error("TC() = true, want false")
	}
	if !got.RD() {
		t.Error("RD() = false, want true")
	}
	if !got.RA() {
		t.Error("RA() = false, want true")
	}
	if got.RCODE() != 3 {
		t.Errorf("RCODE() = %d, want 3", got.RCODE())
	}
}

func TestFlagsIndependence(t *testing.T) {
	var f Flags
	f.SetRD(true)
	f.SetTC(true)
	f.SetRD(false)
	if f.TC() != true {
		t.Error("clearing RD should not clear TC")
	}
	if f.RD() != false {
		t.Error("RD should be false after SetRD(false)")
	}
}

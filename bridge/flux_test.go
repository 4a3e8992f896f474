package bridge

import "testing"

// Encode two MFM bytes 0x44 0xa9 at bitRateKhz=500 and check the resulting
// transition times against a hand-worked trace.
func TestGenerateFluxTransitions(t *testing.T) {
	bitRateKhz := uint16(500)

	mfmBits := []byte{0x44, 0xa9}
	expectedTransitions := []uint64{2000, 6000, 9000, 11000, 13000, 16000}

	transitions, err := GenerateFluxTransitions(mfmBits, bitRateKhz)
	if err != nil {
		t.Fatalf("GenerateFluxTransitions: %v", err)
	}
	if len(transitions) != len(expectedTransitions) {
		t.Fatalf("got %d transitions, want %d: %v", len(transitions), len(expectedTransitions), transitions)
	}
	for i, want := range expectedTransitions {
		if transitions[i] != want {
			t.Errorf("transition %d = %d, want %d", i, transitions[i], want)
		}
	}
}

func TestCoverFullRotationPadsToRotationLength(t *testing.T) {
	transitions := []uint64{2000, 6000}
	out := CoverFullRotation(transitions, 500, 300)
	if len(out) <= len(transitions) {
		t.Fatalf("expected padding to extend the transition list, got %d entries", len(out))
	}
	rotationNs := uint64(60e9 / 300)
	if out[len(out)-1] > rotationNs {
		t.Fatalf("last transition %d exceeds rotation period %d", out[len(out)-1], rotationNs)
	}
}

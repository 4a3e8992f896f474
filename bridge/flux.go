package bridge

import "fmt"

// GenerateFluxTransitions converts a raw MFM bitstream (MSB-first, clock
// and data bits interleaved exactly as mfm/codec.go's words pack them) into
// flux transition times, in nanoseconds relative to track start. Grounded
// on the Greaseweazle adapter's own flux generator; reused here to turn a
// freshly MFM-encoded track buffer into the interval stream CMD_WRITE_FLUX
// expects.
func GenerateFluxTransitions(mfmBits []byte, bitRateKhz uint16) ([]uint64, error) {
	if len(mfmBits) == 0 {
		return nil, fmt.Errorf("bridge: empty MFM data")
	}

	bitRateBps := float64(bitRateKhz) * 1000.0 * 2
	bitcellPeriodNs := uint64(1e9 / bitRateBps)

	var transitions []uint64
	currentTime := uint64(0)

	bitCount := len(mfmBits) * 8
	for i := 0; i < bitCount; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		currentBit := (mfmBits[byteIdx] & (1 << bitIdx)) != 0

		currentTime += bitcellPeriodNs
		if currentBit {
			transitions = append(transitions, currentTime)
		}
	}
	return transitions, nil
}

// CoverFullRotation pads transitions out to one full rotation period by
// appending transitions at 2-bitcell intervals, so a short write still
// fills the whole track the drive expects to see.
func CoverFullRotation(transitions []uint64, bitRateKhz uint16, floppyRPM uint16) []uint64 {
	rotationDurationNs := uint32(60e9 / float64(floppyRPM))

	bitRateBps := float64(bitRateKhz) * 1000.0 * 2
	bitcellPeriodNs := uint64(1e9 / bitRateBps)
	twoBitcellPeriodNs := 2 * bitcellPeriodNs

	lastTime := uint64(0)
	if len(transitions) > 0 {
		lastTime = transitions[len(transitions)-1]
	}

	currentTime := lastTime
	for currentTime+twoBitcellPeriodNs <= uint64(rotationDurationNs) {
		currentTime += twoBitcellPeriodNs
		transitions = append(transitions, currentTime)
	}

	return transitions
}

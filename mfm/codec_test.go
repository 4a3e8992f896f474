package mfm

import "testing"

func TestEncodeDecodeByteRoundTrips(t *testing.T) {
	var prev uint16
	for i := 0; i < 256; i++ {
		want := byte(i)
		word := EncodeByte(prev, want)
		if got := DecodeByte(word); got != want {
			t.Fatalf("byte %d: DecodeByte(EncodeByte(...)) = %d", i, got)
		}
		prev = word
	}
}

func TestEncodeByteNoConsecutiveZeroDataBitsWithoutClock(t *testing.T) {
	// The tag-bit rule exists so two consecutive zero data bits (within a
	// byte or straddling the previous word) always get a clock bit between
	// them; spot-check a value whose bit pattern actually has runs of zero.
	word := EncodeByte(0, 0x00)
	if word == 0 {
		t.Fatalf("EncodeByte(0, 0x00) = 0, want clock bits set to break up the zero run")
	}
}

func TestCRC16KnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE of the empty message is the 0xFFFF seed itself.
	if got := CRC16(nil); got != 0xFFFF {
		t.Fatalf("CRC16(nil) = 0x%04x, want 0xffff", got)
	}
}

func TestRawToBinBinToRawRoundTrips(t *testing.T) {
	buf := make([]uint16, BufSize)
	BuildTrack(buf)

	var payload [SectorSize]byte
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	BinToRaw(buf, 0, &payload)

	got, err := RawToBin(buf, 0)
	if err != nil {
		t.Fatalf("RawToBin: %v", err)
	}
	if got != payload {
		t.Fatalf("round-tripped payload mismatch")
	}
}

func TestRawToBinDetectsCorruption(t *testing.T) {
	buf := make([]uint16, BufSize)
	BuildTrack(buf)

	var payload [SectorSize]byte
	for i := range payload {
		payload[i] = byte(i)
	}
	BinToRaw(buf, 3, &payload)

	off := DataOffset(3)
	buf[off+DData] ^= 0xFFFF // flip every bit of the first data word

	if _, err := RawToBin(buf, 3); err != ErrCRC {
		t.Fatalf("err = %v, want ErrCRC", err)
	}
}

func TestBuildTrackLaysDownSyncMarksAtEachSectorOffset(t *testing.T) {
	buf := make([]uint16, BufSize)
	BuildTrack(buf)

	for st := 0; st < NumSectors; st++ {
		hOff := HeaderOffset(st)
		for i := 0; i < SyncSize; i++ {
			if buf[hOff-SyncSize+i] != SyncData {
				t.Fatalf("sector %d header sync word %d = 0x%04x, want 0x%04x", st, i, buf[hOff-SyncSize+i], SyncData)
			}
		}
		dOff := DataOffset(st)
		for i := 0; i < SyncSize; i++ {
			if buf[dOff-SyncSize+i] != SyncData {
				t.Fatalf("sector %d data sync word %d = 0x%04x, want 0x%04x", st, i, buf[dOff-SyncSize+i], SyncData)
			}
		}
	}
}

package dreamcast

import "testing"

func testDisc() *StaticDisc {
	return &StaticDisc{
		Tracks: []Track{
			{Num: 1, FAD: 150, SectorFmt: SectorCDDA, SectorSize: 2352},
			{Num: 2, FAD: 600, SectorFmt: SectorMode1, SectorSize: 2048},
		},
		Sessions: []Session{
			{LeadInFAD: 150, LeadOutFAD: 1000, FirstTrack: 1, LastTrack: 2},
		},
		Sectors: map[int][]byte{
			600: append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, make([]byte, 2044)...),
		},
	}
}

func TestStaticDiscLookupTrack(t *testing.T) {
	d := testDisc()
	tr, ok := d.LookupTrack(700)
	if !ok || tr.Num != 2 {
		t.Fatalf("LookupTrack(700) = %+v, %v; want track 2", tr, ok)
	}
	tr, ok = d.LookupTrack(200)
	if !ok || tr.Num != 1 {
		t.Fatalf("LookupTrack(200) = %+v, %v; want track 1", tr, ok)
	}
}

func TestGDROMReadSectorRaisesInterrupt(t *testing.T) {
	mem := NewAddressSpace(NewLogger(SeverityFatal))
	sh4 := NewSH4Context()
	holly := NewHolly(mem, NewLogger(SeverityFatal), sh4)
	g := NewGDROM(mem, holly)
	g.AttachDisc(testDisc())

	mem.Write32(hollyRegIML6EXT, HollyIntGDROMCmd)
	mem.Write32(gdromRegFAD, 600)
	mem.Write32(gdromRegCommand, GDROMCmdReadSect)

	if mem.Read32(gdromRegStatus) != GDROMStatusDone {
		t.Fatalf("status = %d, want Done", mem.Read32(gdromRegStatus))
	}
	if sh4.PendingInterrupts&SH4IntIRL9 == 0 {
		t.Fatalf("expected IRL9 pending after GD-ROM command complete")
	}
	if got := g.LastSector(); got[0] != 0xDE || got[1] != 0xAD {
		t.Fatalf("LastSector = %v, want sector payload", got[:4])
	}
}

func TestGDROMMissingDiscReportsError(t *testing.T) {
	mem := NewAddressSpace(NewLogger(SeverityFatal))
	sh4 := NewSH4Context()
	holly := NewHolly(mem, NewLogger(SeverityFatal), sh4)
	NewGDROM(mem, holly)

	mem.Write32(gdromRegCommand, GDROMCmdReadSect)
	if mem.Read32(gdromRegStatus) != GDROMStatusError {
		t.Fatalf("status = %d, want Error with no disc attached", mem.Read32(gdromRegStatus))
	}
}

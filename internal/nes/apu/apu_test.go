package apu

import "testing"

type fakeMemory struct {
	data [0x10000]uint8
}

func (m *fakeMemory) Read(addr uint16) uint8 { return m.data[addr] }

func TestPulseLengthCounterLoadsFromTable(t *testing.T) {
	a := New()
	a.writeChannelEnable(0x01)
	a.WriteRegister(0x4003, 0x08) // length index 1 -> 254
	if a.pulse1.lengthCounter != lengthTable[1] {
		t.Fatalf("lengthCounter = %d, want %d", a.pulse1.lengthCounter, lengthTable[1])
	}
}

func TestChannelEnableClearsLengthCounters(t *testing.T) {
	a := New()
	a.writeChannelEnable(0x01)
	a.WriteRegister(0x4003, 0x08)
	a.writeChannelEnable(0x00)
	if a.pulse1.lengthCounter != 0 {
		t.Fatalf("disabling a channel should clear its length counter")
	}
}

func TestStatusReflectsLengthCounters(t *testing.T) {
	a := New()
	a.writeChannelEnable(0x01)
	a.WriteRegister(0x4003, 0x08)
	if a.ReadStatus()&0x01 == 0 {
		t.Fatalf("status bit 0 should be set while pulse1's length counter is nonzero")
	}
}

func TestStatusReadClearsFrameIRQButNotDMCIRQ(t *testing.T) {
	a := New()
	a.frameIRQFlag = true
	a.dmc.irqFlag = true
	status := a.ReadStatus()
	if status&0x40 == 0 || status&0x80 == 0 {
		t.Fatalf("status should report both pending IRQs before the read clears anything")
	}
	if a.frameIRQFlag {
		t.Fatalf("reading $4015 should clear the frame IRQ flag")
	}
	if !a.dmc.irqFlag {
		t.Fatalf("reading $4015 must not clear the DMC IRQ flag")
	}
}

func TestFrameCounterFourStepFiresIRQ(t *testing.T) {
	a := New()
	a.Tick(29830)
	if !a.frameIRQFlag {
		t.Fatalf("4-step frame sequencer should assert IRQ at cycle 29830")
	}
	if !a.IRQ() {
		t.Fatalf("IRQ() should report true while the frame IRQ flag is pending")
	}
}

func TestFrameCounterFiveStepNeverFiresIRQ(t *testing.T) {
	a := New()
	a.WriteRegister(0x4017, 0x80) // 5-step mode
	a.Tick(37281 * 2)
	if a.frameIRQFlag {
		t.Fatalf("5-step frame sequencer must never assert the frame IRQ")
	}
}

func TestFrameCounterIRQInhibitFlagSuppressesIRQ(t *testing.T) {
	a := New()
	a.WriteRegister(0x4017, 0x40) // inhibit IRQ, stay in 4-step mode
	a.Tick(29830)
	if a.frameIRQFlag {
		t.Fatalf("IRQ-inhibit bit should prevent the frame IRQ from ever being set")
	}
}

func TestPulseSweepMutesBelowMinimumTimer(t *testing.T) {
	a := New()
	a.writeChannelEnable(0x01)
	a.WriteRegister(0x4003, 0x08) // load length counter, timer still 0
	a.pulse1.sequencerPos = 1     // duty table[2][1] == 1, would otherwise be audible
	a.pulse1.dutyCycle = 2
	a.pulse1.envelopeDisable = true
	a.pulse1.volume = 15
	if out := a.getPulseOutput(&a.pulse1); out != 0 {
		t.Fatalf("pulse output with timer < 8 should be muted, got %d", out)
	}
}

func TestNoiseLFSRAdvancesOnTimerUnderflow(t *testing.T) {
	a := New()
	a.writeChannelEnable(0x08)
	a.noise.periodIndex = 0 // shortest period, 4 cycles
	before := a.noise.shiftRegister
	for i := 0; i < 4; i++ {
		a.stepNoiseTimer(&a.noise)
	}
	if a.noise.shiftRegister == before {
		t.Fatalf("LFSR should have shifted after its timer underflowed")
	}
}

func TestTriangleSilentWhenLinearCounterZero(t *testing.T) {
	a := New()
	a.triangle.lengthCounter = 10
	a.triangle.linearCounter = 0
	if out := a.getTriangleOutput(&a.triangle); out != 0 {
		t.Fatalf("triangle output should be silent while the linear counter is zero, got %d", out)
	}
}

func TestDMCFetchesThroughMemoryAndStallsCPU(t *testing.T) {
	a := New()
	mem := &fakeMemory{}
	mem.data[0xC040] = 0xFF // all bits set -> output only ever increases
	a.SetMemory(mem)

	a.WriteRegister(0x4012, 0x01) // sample address = $C000 + 1*64 = $C040
	a.WriteRegister(0x4013, 0x00) // sample length = 1 byte
	a.WriteRegister(0x4010, 0x00) // rate index 0
	a.writeChannelEnable(0x10)    // enable DMC, starts playback

	a.dmcFetchByte(&a.dmc)
	if a.dmc.sampleByte != 0xFF {
		t.Fatalf("DMC should have fetched the byte at the sample address via Memory")
	}
	if a.TakeDMCStall() != 4 {
		t.Fatalf("a DMC byte fetch should record a 4-cycle CPU stall")
	}
}

func TestDMCSetsIRQAtEndOfSampleWithoutLoop(t *testing.T) {
	a := New()
	mem := &fakeMemory{}
	a.SetMemory(mem)
	a.WriteRegister(0x4010, 0x80) // IRQ enable, no loop
	a.WriteRegister(0x4012, 0x00)
	a.WriteRegister(0x4013, 0x00) // 1 byte
	a.writeChannelEnable(0x10)

	a.dmcFetchByte(&a.dmc) // consumes the only byte, bytesRemaining -> 0, irqFlag set
	if !a.dmc.irqFlag {
		t.Fatalf("DMC should set its IRQ flag once the sample ends without looping")
	}
}

func TestMixerSilentWhenAllChannelsZero(t *testing.T) {
	a := New()
	if out := a.mixChannels(0, 0, 0, 0, 0); out != 0 {
		t.Fatalf("mixer output with all channels at 0 should be exactly 0, got %v", out)
	}
}

func TestMixerOutputStaysInUnitRange(t *testing.T) {
	a := New()
	out := a.mixChannels(15, 15, 15, 15, 127)
	if out < 0 || out > 1 {
		t.Fatalf("mixer output should stay within [0,1], got %v", out)
	}
}

func TestChannelOutputZeroWhenDisabled(t *testing.T) {
	a := New()
	if a.ChannelOutput(0) != 0 {
		t.Fatalf("a disabled channel should report zero output")
	}
	if a.ChannelEnabled(0) {
		t.Fatalf("channel 0 should be disabled by default")
	}
}

// Package bus wires a cartridge, CPU, PPU, APU, and controllers into a
// runnable machine and owns the frame-advance loop described by the
// system's timing model: CPU cycles are accounted first, then PPU
// ticks for those cycles, then APU, with interrupts raised during
// those ticks taking effect at the next instruction boundary.
package bus

import (
	"github.com/golang/glog"

	"nesemu/internal/nes/apu"
	"nesemu/internal/nes/cartridge"
	"nesemu/internal/nes/controller"
	"nesemu/internal/nes/cpu"
	"nesemu/internal/nes/ppu"
)

const ramSize = 0x0800

// Machine owns every component and is the only thing that allocates
// or persists them; Bus (below) is the transient CPU-facing view that
// borrows pointers out of a Machine for the duration of a memory
// access, so no component holds a permanent reference back to its
// siblings — breaking the CPU->PPU->NMI->CPU cycle a naive "everyone
// points at everyone" wiring would create.
type Machine struct {
	CPU         *cpu.CPU
	PPU         *ppu.PPU
	APU         *apu.APU
	Cart        *cartridge.Cartridge
	Controllers [2]*controller.Controller

	ram [ramSize]uint8

	bus *Bus

	irqSource cartridge.IRQSource

	dmaStallCycles int
	frameCount     uint64
}

// New constructs a machine with no cartridge loaded; call LoadCartridge
// before Step.
func New() *Machine {
	m := &Machine{
		PPU: ppu.New(),
		APU: apu.New(),
		Controllers: [2]*controller.Controller{
			controller.New(),
			controller.New(),
		},
	}
	m.bus = &Bus{m: m}
	m.CPU = cpu.New(m.bus)
	m.APU.SetMemory(m.bus)
	return m
}

// LoadCartridge installs a cartridge, wires the PPU's CHR-side bus and
// the mapper's IRQ/A12 hooks, and resets every component.
func (m *Machine) LoadCartridge(cart *cartridge.Cartridge) {
	m.Cart = cart
	m.PPU.SetVideoBus(mapperVideoBus{cart.Mapper()})

	if watcher, ok := cart.Mapper().(cartridge.A12Watcher); ok {
		m.PPU.SetA12RiseCallback(watcher.OnPPUA12Rise)
	} else {
		m.PPU.SetA12RiseCallback(nil)
	}
	if src, ok := cart.Mapper().(cartridge.IRQSource); ok {
		m.irqSource = src
	} else {
		m.irqSource = nil
	}

	m.Reset()
}

// Reset returns every component to its post-power-up state.
func (m *Machine) Reset() {
	m.CPU.Reset()
	m.PPU.Reset()
	m.APU.Reset()
	m.Controllers[0].Reset()
	m.Controllers[1].Reset()
	m.dmaStallCycles = 0
	m.frameCount = 0
}

// SetButtons latches the given controller's current button state.
func (m *Machine) SetButtons(port int, buttons [8]bool) {
	if port < 0 || port >= len(m.Controllers) {
		return
	}
	m.Controllers[port].SetButtons(buttons)
}

// Step executes exactly one CPU instruction (or services a pending OAM
// DMA stall instead) and advances the PPU and APU by the same number
// of CPU cycles, wiring the PPU's NMI line and any mapper/APU IRQ
// source into the CPU before returning.
func (m *Machine) Step() {
	var cycles int
	if m.dmaStallCycles > 0 {
		cycles = m.dmaStallCycles
		m.dmaStallCycles = 0
	} else {
		cycles = int(m.CPU.Step())
	}

	for i := 0; i < cycles*3; i++ {
		m.PPU.Step()
		m.CPU.SetNMILine(m.PPU.NMIOutput())
	}

	m.APU.Tick(cycles)
	m.dmaStallCycles += m.APU.TakeDMCStall()

	irq := m.APU.IRQ()
	if m.irqSource != nil {
		irq = irq || m.irqSource.IRQPending()
	}
	m.CPU.SetIRQLine(irq)
}

// AdvanceFrame runs Step until the PPU reaches the start of vertical
// blank (scanline 241, dot 1), the point at which a full frame's worth
// of pixels has been rendered into the frame buffer and it's safe for
// the host to read it.
func (m *Machine) AdvanceFrame() {
	for !(m.PPU.Scanline() == 241 && m.PPU.Dot() == 1) {
		m.Step()
	}
	m.frameCount++
}

// triggerOAMDMA services a CPU write to $4014: copies 256 bytes from
// CPU page (value<<8) into OAM starting at the PPU's current OAMADDR,
// and schedules the 513/514-cycle CPU stall (514 on an odd CPU cycle,
// since the DMA unit needs an extra alignment cycle).
func (m *Machine) triggerOAMDMA(page uint8) {
	base := uint16(page) << 8
	start := m.PPU.OAMAddr()
	for i := 0; i < 256; i++ {
		data := m.bus.Read(base + uint16(i))
		m.PPU.WriteOAMByte(start+uint8(i), data)
	}

	stall := 513
	if m.CPU.Cycles()%2 == 1 {
		stall = 514
	}
	m.dmaStallCycles += stall
}

// CPUState, PPUState, APUState, ControllerState, MapperID, and
// MapperState implement savestate.Machine's capture half.
func (m *Machine) CPUState() cpu.State { return m.CPU.Snapshot() }
func (m *Machine) PPUState() ppu.State { return m.PPU.Snapshot() }
func (m *Machine) APUState() apu.State { return m.APU.Snapshot() }

func (m *Machine) ControllerState(port int) controller.State {
	if port < 0 || port >= len(m.Controllers) {
		return controller.State{}
	}
	return m.Controllers[port].Snapshot()
}

func (m *Machine) MapperID() uint8 {
	if m.Cart == nil {
		return 0
	}
	return m.Cart.MapperID()
}

func (m *Machine) MapperState() (cartridge.MapperState, bool) {
	if m.Cart == nil {
		return cartridge.MapperState{}, false
	}
	saver, ok := m.Cart.Mapper().(cartridge.StateSaver)
	if !ok {
		return cartridge.MapperState{}, false
	}
	return saver.SaveState(), true
}

// RestoreCPU, RestorePPU, RestoreAPU, RestoreController, and
// RestoreMapperState implement savestate.Machine's restore half.
func (m *Machine) RestoreCPU(s cpu.State) { m.CPU.Restore(s) }
func (m *Machine) RestorePPU(s ppu.State) { m.PPU.Restore(s) }
func (m *Machine) RestoreAPU(s apu.State) { m.APU.Restore(s) }

func (m *Machine) RestoreController(port int, s controller.State) {
	if port < 0 || port >= len(m.Controllers) {
		return
	}
	m.Controllers[port].Restore(s)
}

func (m *Machine) RestoreMapperState(s cartridge.MapperState) bool {
	if m.Cart == nil {
		return false
	}
	saver, ok := m.Cart.Mapper().(cartridge.StateSaver)
	if !ok {
		return false
	}
	saver.LoadState(s)
	return true
}

// mapperVideoBus adapts cartridge.Mapper to ppu.VideoBus, converting
// cartridge.MirrorMode to ppu.MirrorMode across the package boundary
// (both are small same-shaped enums, kept as distinct named types so
// neither package depends on the other's internals).
type mapperVideoBus struct {
	m cartridge.Mapper
}

func (v mapperVideoBus) ReadCHR(addr uint16) uint8         { return v.m.ReadCHR(addr) }
func (v mapperVideoBus) WriteCHR(addr uint16, value uint8) { v.m.WriteCHR(addr, value) }

func (v mapperVideoBus) Mirroring() ppu.MirrorMode {
	switch v.m.Mirroring() {
	case cartridge.MirrorVertical:
		return ppu.MirrorVertical
	case cartridge.MirrorSingleLower:
		return ppu.MirrorSingleLower
	case cartridge.MirrorSingleUpper:
		return ppu.MirrorSingleUpper
	case cartridge.MirrorFourScreen:
		return ppu.MirrorFourScreen
	default:
		return ppu.MirrorHorizontal
	}
}

// Bus is the CPU-facing memory map: a thin, non-owning view over a
// Machine's components, constructed once per Machine and handed to
// the CPU so every memory effect still funnels through a single
// dispatch point without Bus itself owning any state.
type Bus struct {
	m *Machine
}

// Read services a CPU read anywhere in the 16-bit address space.
func (b *Bus) Read(addr uint16) uint8 {
	m := b.m
	switch {
	case addr < 0x2000:
		return m.ram[addr%ramSize]
	case addr < 0x4000:
		return m.PPU.ReadRegister(addr)
	case addr == 0x4015:
		return m.APU.ReadStatus()
	case addr == 0x4016:
		v := m.Controllers[0].Read()
		return v | 0x40
	case addr == 0x4017:
		v := m.Controllers[1].Read()
		return v | 0x40
	case addr < 0x4018:
		return 0 // write-only APU registers read back open bus (0)
	case m.Cart != nil:
		return m.Cart.Mapper().ReadPRG(addr)
	default:
		return 0
	}
}

// Write services a CPU write anywhere in the 16-bit address space.
func (b *Bus) Write(addr uint16, value uint8) {
	m := b.m
	switch {
	case addr < 0x2000:
		m.ram[addr%ramSize] = value
	case addr < 0x4000:
		m.PPU.WriteRegister(addr, value)
	case addr == 0x4014:
		m.triggerOAMDMA(value)
	case addr == 0x4016:
		m.Controllers[0].Write(value)
		m.Controllers[1].Write(value)
	case addr == 0x4017:
		m.APU.WriteRegister(addr, value)
	case addr < 0x4018:
		m.APU.WriteRegister(addr, value)
	case m.Cart != nil:
		m.Cart.Mapper().WritePRG(addr, value)
	default:
		glog.V(2).Infof("bus: write to unmapped address $%04X (value $%02X) dropped", addr, value)
	}
}

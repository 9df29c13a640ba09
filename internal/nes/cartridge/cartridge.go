// Package cartridge implements iNES ROM loading and the mapper interface
// that translates CPU/PPU addresses onto a cartridge's PRG/CHR memory.
package cartridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
)

// MirrorMode selects how the PPU's four logical nametables fold onto the
// two physical 1KB nametable RAM banks.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleLower
	MirrorSingleUpper
	MirrorFourScreen
)

// Mapper is the interface every bank-switching scheme implements. The bus
// routes all cartridge-bound CPU and PPU memory traffic through it —
// nothing outside this package inspects ROM bytes directly (invariant i).
type Mapper interface {
	ReadPRG(addr uint16) uint8
	WritePRG(addr uint16, value uint8)
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, value uint8)
	Mirroring() MirrorMode
}

// IRQSource is implemented by mappers that can assert the CPU's IRQ line
// (currently only MMC3's scanline counter). Acknowledgment happens
// through the mapper's own register writes (MMC3 clears it on a write
// to $E000), so the interface only needs to report the line's state.
type IRQSource interface {
	IRQPending() bool
}

// Battery is implemented by mappers with a PRG-RAM window (NROM, MMC1,
// MMC3), exposing it so Cartridge.BatteryRAM can surface battery-backed
// save RAM to the host and the loader can seed it from a previously
// persisted image.
type Battery interface {
	PRGRAM() []uint8
}

// A12Watcher is implemented by mappers whose IRQ counter clocks on a
// rising edge of the PPU address bus's A12 line (MMC3), rather than once
// per scanline. The bus/PPU calls this whenever it detects such an edge.
type A12Watcher interface {
	OnPPUA12Rise()
}

// MapperState is a snapshot of a mapper's mutable bank-switching and
// battery-RAM state, for save-state persistence. Each mapper packs its
// own handful of registers into the U8/U16 slots. SRAM and CHRRAM are
// only populated by mappers that have battery RAM or switchable CHR-RAM
// respectively; PRG-ROM/CHR-ROM contents are never included since
// they're reloaded from the cartridge file.
type MapperState struct {
	SRAM   []uint8
	CHRRAM []uint8
	U8     []uint8
	U16    []uint16
}

// StateSaver is implemented by every mapper in this package so the
// save-state package can snapshot and restore bank-switching state
// without knowing which concrete mapper is loaded.
type StateSaver interface {
	SaveState() MapperState
	LoadState(MapperState)
}

const (
	prgBankSize = 16384
	chrBankSize = 8192
	trainerSize = 512

	flagMirrorVertical  = 0x01
	flagHasBattery      = 0x02
	flagHasTrainer      = 0x04
	flagFourScreen      = 0x08
	flagNES2Identifier  = 0x0C
	flagMapperLowNibble = 0xF0
)

var (
	ErrBadFormat           = errors.New("cartridge: invalid iNES format")
	ErrEmptyPRG            = errors.New("cartridge: PRG-ROM size is zero")
	ErrUnsupportedMapper   = errors.New("cartridge: unsupported mapper")
	ErrBatterySizeMismatch = errors.New("cartridge: persisted battery RAM size does not match cartridge PRG RAM size")
)

type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8
	CHRROMSize uint8
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// Cartridge owns the decoded PRG/CHR images and wraps them in the mapper
// selected by the header's mapper number.
type Cartridge struct {
	mapperID   uint8
	mapper     Mapper
	hasBattery bool
}

// LoadFromFile opens and parses an iNES file on disk. The optional
// battery argument supplies a previously persisted battery-RAM image to
// seed PRG RAM with; pass none to start with zeroed PRG RAM.
func LoadFromFile(path string, battery ...[]uint8) (*Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f, battery...)
}

// LoadFromReader parses an iNES image from an arbitrary reader, so tests
// can build ROMs in memory without touching disk. The optional battery
// argument supplies a previously persisted battery-RAM image; if its
// length doesn't match the cartridge's PRG RAM size, loading fails with
// ErrBatterySizeMismatch.
func LoadFromReader(r io.Reader, battery ...[]uint8) (*Cartridge, error) {
	var persisted []uint8
	if len(battery) > 0 {
		persisted = battery[0]
	}

	var header iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if string(header.Magic[:]) != "NES\x1A" {
		return nil, ErrBadFormat
	}
	if header.PRGROMSize == 0 {
		return nil, ErrEmptyPRG
	}

	mapperID := (header.Flags6 >> 4) | (header.Flags7 & flagMapperLowNibble)
	isNES2 := header.Flags7&flagNES2Identifier == 0x08
	if isNES2 {
		glog.V(1).Infof("cartridge: NES 2.0 header detected, parsing as iNES 1.0 subset (mapper %d)", mapperID)
	}

	mirror := MirrorHorizontal
	switch {
	case header.Flags6&flagFourScreen != 0:
		mirror = MirrorFourScreen
	case header.Flags6&flagMirrorVertical != 0:
		mirror = MirrorVertical
	}
	hasBattery := header.Flags6&flagHasBattery != 0

	if header.Flags6&flagHasTrainer != 0 {
		trainer := make([]uint8, trainerSize)
		if _, err := io.ReadFull(r, trainer); err != nil {
			return nil, err
		}
	}

	prgROM := make([]uint8, int(header.PRGROMSize)*prgBankSize)
	if _, err := io.ReadFull(r, prgROM); err != nil {
		return nil, err
	}

	var chrROM []uint8
	chrIsRAM := header.CHRROMSize == 0
	if chrIsRAM {
		chrROM = make([]uint8, chrBankSize)
	} else {
		chrROM = make([]uint8, int(header.CHRROMSize)*chrBankSize)
		if _, err := io.ReadFull(r, chrROM); err != nil {
			return nil, err
		}
	}

	mapper, err := newMapper(mapperID, prgROM, chrROM, chrIsRAM, mirror, persisted)
	if err != nil {
		return nil, err
	}

	glog.V(1).Infof("cartridge: loaded mapper %d, PRG=%dKB CHR=%dKB battery=%v",
		mapperID, len(prgROM)/1024, len(chrROM)/1024, hasBattery)

	return &Cartridge{mapperID: mapperID, mapper: mapper, hasBattery: hasBattery}, nil
}

func newMapper(id uint8, prgROM, chrROM []uint8, chrIsRAM bool, mirror MirrorMode, battery []uint8) (Mapper, error) {
	var m Mapper
	switch id {
	case 0:
		m = newNROM(prgROM, chrROM, chrIsRAM, mirror)
	case 1:
		m = newMMC1(prgROM, chrROM, chrIsRAM, mirror)
	case 2:
		m = newUxROM(prgROM, chrROM, mirror)
	case 3:
		m = newCNROM(prgROM, chrROM, mirror)
	case 4:
		m = newMMC3(prgROM, chrROM, chrIsRAM, mirror)
	case 7:
		m = newAxROM(prgROM, chrROM)
	default:
		return nil, fmt.Errorf("%w: mapper %d", ErrUnsupportedMapper, id)
	}

	if err := seedBattery(m, battery); err != nil {
		return nil, err
	}
	return m, nil
}

// seedBattery copies a previously persisted battery-RAM image into a
// mapper's PRG RAM, or confirms there's nothing to seed. A non-nil
// battery slice whose length doesn't match the mapper's PRG RAM window
// (zero, for mappers with no Battery implementation) is rejected rather
// than silently truncated or zero-padded.
func seedBattery(m Mapper, battery []uint8) error {
	var prgRAM []uint8
	if b, ok := m.(Battery); ok {
		prgRAM = b.PRGRAM()
	}
	if battery == nil {
		return nil
	}
	if len(battery) != len(prgRAM) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBatterySizeMismatch, len(battery), len(prgRAM))
	}
	copy(prgRAM, battery)
	return nil
}

// MapperID reports the iNES mapper number this cartridge was parsed with.
func (c *Cartridge) MapperID() uint8 { return c.mapperID }

// Mapper exposes the underlying bank-switching implementation for the bus
// to route CPU/PPU memory traffic through.
func (c *Cartridge) Mapper() Mapper { return c.mapper }

// BatteryRAM exposes the cartridge's battery-backed PRG RAM as a
// read-only-by-convention slice the host can copy and persist after a
// call to advance the machine by a frame; it returns nil if the
// cartridge's header did not set the battery flag or the mapper has no
// PRG-RAM window.
func (c *Cartridge) BatteryRAM() []uint8 {
	if !c.hasBattery {
		return nil
	}
	b, ok := c.mapper.(Battery)
	if !ok {
		return nil
	}
	return b.PRGRAM()
}

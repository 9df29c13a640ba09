// Package savestate serializes and restores a running machine's complete
// state as an opaque versioned blob. No save-state library appears
// anywhere in the example pack, so this package is built directly on
// encoding/gob: every snapshot struct it moves is already a plain,
// exported, fixed-shape value (no interfaces, no cycles), which is
// exactly what gob is suited for and nothing a third-party codec would
// do better here.
package savestate

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"nesemu/internal/nes/apu"
	"nesemu/internal/nes/cartridge"
	"nesemu/internal/nes/controller"
	"nesemu/internal/nes/cpu"
	"nesemu/internal/nes/ppu"
)

// Version is bumped whenever the shape of Snapshot (or any component
// State it embeds) changes incompatibly.
const Version = 1

// ErrIncompatibleSaveState is returned when a loaded blob's version or
// mapper doesn't match what the running machine expects.
var ErrIncompatibleSaveState = errors.New("savestate: incompatible save state")

// Machine is the subset of bus.Machine this package needs; defined here
// rather than importing the bus package so savestate has no dependency
// on how the bus wires components together, only on the components
// themselves.
type Machine interface {
	CPUState() cpu.State
	PPUState() ppu.State
	APUState() apu.State
	ControllerState(port int) controller.State
	MapperID() uint8
	MapperState() (cartridge.MapperState, bool)

	RestoreCPU(cpu.State)
	RestorePPU(ppu.State)
	RestoreAPU(apu.State)
	RestoreController(port int, s controller.State)
	RestoreMapperState(cartridge.MapperState) bool
}

// Snapshot is the complete serializable state of a running machine.
type Snapshot struct {
	Version      int
	MapperID     uint8
	CPU          cpu.State
	PPU          ppu.State
	APU          apu.State
	Controllers  [2]controller.State
	Mapper       cartridge.MapperState
	HasMapper    bool
}

// Capture builds a Snapshot from a machine's current state.
func Capture(m Machine) Snapshot {
	mapperState, ok := m.MapperState()
	return Snapshot{
		Version:  Version,
		MapperID: m.MapperID(),
		CPU:      m.CPUState(),
		PPU:      m.PPUState(),
		APU:      m.APUState(),
		Controllers: [2]controller.State{
			m.ControllerState(0),
			m.ControllerState(1),
		},
		Mapper:    mapperState,
		HasMapper: ok,
	}
}

// Apply restores a machine from a Snapshot captured against a cartridge
// with the same mapper ID. Restoring onto a machine with a different
// mapper loaded returns ErrIncompatibleSaveState without mutating the
// machine.
func Apply(m Machine, s Snapshot) error {
	if s.Version != Version {
		return fmt.Errorf("%w: blob version %d, runtime expects %d", ErrIncompatibleSaveState, s.Version, Version)
	}
	if s.MapperID != m.MapperID() {
		return fmt.Errorf("%w: blob mapper %d, loaded cartridge uses mapper %d", ErrIncompatibleSaveState, s.MapperID, m.MapperID())
	}
	m.RestoreCPU(s.CPU)
	m.RestorePPU(s.PPU)
	m.RestoreAPU(s.APU)
	m.RestoreController(0, s.Controllers[0])
	m.RestoreController(1, s.Controllers[1])
	if s.HasMapper {
		if !m.RestoreMapperState(s.Mapper) {
			return fmt.Errorf("%w: loaded mapper does not support state restore", ErrIncompatibleSaveState)
		}
	}
	return nil
}

// Encode serializes a Snapshot to its wire form.
func Encode(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("savestate: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a previously Encoded blob.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrIncompatibleSaveState, err)
	}
	return s, nil
}

// WriteFile captures m and writes the encoded blob to path.
func WriteFile(path string, m Machine) error {
	s := Capture(m)
	data, err := Encode(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile decodes a blob from path and restores it onto m.
func ReadFile(path string, m Machine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s, err := Decode(data)
	if err != nil {
		return err
	}
	return Apply(m, s)
}

// ReadFrom decodes a blob from an arbitrary reader and restores it onto m.
func ReadFrom(r io.Reader, m Machine) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s, err := Decode(data)
	if err != nil {
		return err
	}
	return Apply(m, s)
}

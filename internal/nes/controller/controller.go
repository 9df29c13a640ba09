// Package controller implements the NES's standard joypad: an 8-bit
// parallel-in/serial-out shift register latched from button state on
// a strobe write.
package controller

// Button indexes the 8 standard joypad buttons in the order the
// shift register reports them: A, B, Select, Start, Up, Down, Left,
// Right.
type Button int

const (
	A Button = iota
	B
	Select
	Start
	Up
	Down
	Left
	Right
)

// Controller is one joypad port's shift register.
type Controller struct {
	buttons [8]bool
	strobe  bool
	shift   uint8
	reads   uint8
}

// New constructs a controller with no buttons held.
func New() *Controller { return &Controller{} }

// Reset clears button state and the shift register.
func (c *Controller) Reset() {
	c.buttons = [8]bool{}
	c.strobe = false
	c.shift = 0
	c.reads = 0
}

// SetButtons replaces the held-button snapshot the next strobe (or, if
// strobe is already held high, every read) will latch from.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = buttons
	if c.strobe {
		c.latch()
	}
}

// Write services a CPU write to $4016: bit 0 is the strobe. While
// held high the latch continuously reloads from the current button
// state; the falling edge freezes whatever was latched last for the
// following 8 reads.
func (c *Controller) Write(value uint8) {
	c.strobe = value&0x01 != 0
	if c.strobe {
		c.latch()
	}
}

func (c *Controller) latch() {
	c.shift = 0
	for i := 7; i >= 0; i-- {
		c.shift <<= 1
		if c.buttons[i] {
			c.shift |= 1
		}
	}
	c.reads = 0
}

// Read services a CPU read of $4016/$4017: each call pops the next
// bit (A first), with bit 0 of the returned byte carrying the data
// and the upper bits left at 0 for the caller to OR in any open-bus
// bits. After 8 reads further reads return 1 in bit 0 until the next
// strobe.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.latch()
	}
	if c.reads >= 8 {
		return 1
	}
	bit := c.shift & 0x01
	c.shift >>= 1
	c.reads++
	return bit
}

// State is the controller's complete serializable state, exported for
// save-state snapshotting.
type State struct {
	Buttons [8]bool
	Strobe  bool
	Shift   uint8
	Reads   uint8
}

// Snapshot captures the controller's current state.
func (c *Controller) Snapshot() State {
	return State{Buttons: c.buttons, Strobe: c.strobe, Shift: c.shift, Reads: c.reads}
}

// Restore replaces the controller's state with a previously captured
// Snapshot.
func (c *Controller) Restore(s State) {
	c.buttons, c.strobe, c.shift, c.reads = s.Buttons, s.Strobe, s.Shift, s.Reads
}

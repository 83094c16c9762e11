// maple.go - Maple bus controller peripheral (spec.md §6's input
// stream consumer).
//
// Grounded on original_source/src/hw/maple/controller.c: the button
// bitmask enum, the profile-driven keycode-to-button map (here loaded
// from a Config section via config.go instead of the original's INI
// parser, since spec.md §6 "Persistent state" is already key=value
// text), the press/release and axis-scaling rules in controller_input,
// and the DEVINFO/GETCOND frame responses in controller_frame. No
// maple.c/maple.h equivalent was part of the retrieved source, so the
// bus-level DMA/packet framing real hardware uses to reach a device's
// frame handler is not modeled; HandleFrame is called directly by
// whatever drives the bus, matching the granularity the retrieved
// controller.c itself operates at.
package dreamcast

// Button bitmask values, ported from controller.c's enum. Buttons at
// or below DPad2Right pack into Controller.buttons (active low, same
// as the original); JoyX/JoyY/LTrig/RTrig instead select one of the
// four analog fields.
const (
	ContC          = 0x1
	ContB          = 0x2
	ContA          = 0x4
	ContStart      = 0x8
	ContDPadUp     = 0x10
	ContDPadDown   = 0x20
	ContDPadLeft   = 0x40
	ContDPadRight  = 0x80
	ContZ          = 0x100
	ContY          = 0x200
	ContX          = 0x400
	ContD          = 0x800
	ContDPad2Up    = 0x1000
	ContDPad2Down  = 0x2000
	ContDPad2Left  = 0x4000
	ContDPad2Right = 0x8000
	ContJoyX       = 0x10000
	ContJoyY       = 0x20000
	ContLTrig      = 0x40000
	ContRTrig      = 0x80000
)

// Maple frame commands (the subset controller.c answers).
const (
	MapleReqDevInfo  = 1
	MapleResDevInfo  = 5
	MapleReqGetCond  = 9
	MapleResTransfer = 8
)

const mapleFuncController = 0x1000000 // MAPLE_FUNC_CONTROLLER

// ControllerCondition mirrors struct maple_cond: the polled state a
// MAPLE_REQ_GETCOND response returns.
type ControllerCondition struct {
	Function            uint32
	Buttons              uint16
	RTrig, LTrig         uint8
	JoyX, JoyY           uint8
	JoyX2, JoyY2         uint8
}

// Controller is one Maple-bus peripheral at a given port/unit. Buttons
// default to all-released (0xffff, active low); axes default to
// centered (0x80), exactly as controller_create initializes cnd.
type Controller struct {
	Port, Unit int
	cond       ControllerCondition
	keymap     map[int]int // host keycode -> Cont* bitmask
}

// NewController installs the same default WASD-ish key bindings
// controller_create hardcodes, so the emulator is playable before any
// profile is loaded.
func NewController(port, unit int) *Controller {
	c := &Controller{Port: port, Unit: unit, keymap: map[int]int{}}
	c.cond.Function = mapleFuncController
	c.cond.Buttons = 0xffff
	c.cond.JoyX, c.cond.JoyY = 0x80, 0x80
	c.cond.JoyX2, c.cond.JoyY2 = 0x80, 0x80

	c.keymap[' '] = ContStart
	c.keymap['k'] = ContA
	c.keymap['l'] = ContB
	c.keymap['j'] = ContX
	c.keymap['i'] = ContY
	c.keymap['w'] = ContDPadUp
	c.keymap['s'] = ContDPadDown
	c.keymap['a'] = ContDPadLeft
	c.keymap['d'] = ContDPadRight
	c.keymap['o'] = ContLTrig
	c.keymap['p'] = ContRTrig
	return c
}

// LoadProfile rereads a [controller] section's key=value bindings,
// overwriting NewController's defaults one button at a time. Values
// are single ASCII characters (e.g. "k"); anything else is rejected
// with a warning, mirroring controller_ini_handler's get_key_by_name
// failure path.
func (c *Controller) LoadProfile(cfg *Config, log *Logger) {
	names := map[string]int{
		"joyx": ContJoyX, "joyy": ContJoyY,
		"ltrig": ContLTrig, "rtrig": ContRTrig,
		"start": ContStart, "a": ContA, "b": ContB, "x": ContX, "y": ContY,
		"dpad_up": ContDPadUp, "dpad_down": ContDPadDown,
		"dpad_left": ContDPadLeft, "dpad_right": ContDPadRight,
	}
	for name, button := range names {
		v, ok := cfg.Get("controller", name)
		if !ok {
			continue
		}
		if len(v) != 1 {
			if log != nil {
				log.Warningf("maple", "controller profile: unknown key %q for %s", v, name)
			}
			continue
		}
		c.keymap[int(v[0])] = button
	}
}

// HandleInput applies one InputEvent, exactly mirroring
// controller_input: buttons up to DPad2Right toggle a bit in the
// active-low Buttons mask; the four analog buttons instead scale the
// incoming int16 into the condition's uint8 field.
func (c *Controller) HandleInput(ev InputEvent) {
	button, ok := c.keymap[ev.Keycode]
	if !ok {
		return
	}
	scaled := uint8((int32(ev.Value) - (-32768)) >> 8)

	switch {
	case button <= ContDPad2Right:
		if ev.Value > 0 {
			c.cond.Buttons &^= uint16(button)
		} else {
			c.cond.Buttons |= uint16(button)
		}
	case button == ContJoyX:
		c.cond.JoyX = scaled
	case button == ContJoyY:
		c.cond.JoyY = scaled
	case button == ContLTrig:
		c.cond.LTrig = scaled
	case button == ContRTrig:
		c.cond.RTrig = scaled
	}
}

// MapleFrame is a simplified stand-in for the real protocol's
// length-prefixed header/params layout: just enough for HandleFrame to
// dispatch on, since no maple.c/maple.h defining the real wire layout
// was retrieved.
type MapleFrame struct {
	Command        int
	SendAddr, RecvAddr byte
	Params         []byte
}

// HandleFrame answers MAPLE_REQ_DEVINFO and MAPLE_REQ_GETCOND, the two
// commands controller_frame implements; any other command is
// unhandled, matching the original's return-0 fallthrough.
func (c *Controller) HandleFrame(req MapleFrame) (MapleFrame, bool) {
	switch req.Command {
	case MapleReqDevInfo:
		return MapleFrame{
			Command:  MapleResDevInfo,
			SendAddr: req.RecvAddr,
			RecvAddr: req.SendAddr,
			Params:   []byte("Dreamcast Controller"),
		}, true
	case MapleReqGetCond:
		return MapleFrame{
			Command:  MapleResTransfer,
			SendAddr: req.RecvAddr,
			RecvAddr: req.SendAddr,
			Params:   c.encodeCondition(),
		}, true
	}
	return MapleFrame{}, false
}

func (c *Controller) encodeCondition() []byte {
	b := make([]byte, 12)
	putLE32(b[0:4], c.cond.Function)
	b[4], b[5] = byte(c.cond.Buttons), byte(c.cond.Buttons>>8)
	b[6], b[7] = c.cond.RTrig, c.cond.LTrig
	b[8], b[9] = c.cond.JoyX, c.cond.JoyY
	b[10], b[11] = c.cond.JoyX2, c.cond.JoyY2
	return b
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// MapleBus owns every attached peripheral and is the InputSource side's
// consumer: PumpInput drains a source and routes each event to the
// controller at its DeviceIndex.
type MapleBus struct {
	Controllers []*Controller
}

func NewMapleBus(count int) *MapleBus {
	b := &MapleBus{}
	for i := 0; i < count; i++ {
		b.Controllers = append(b.Controllers, NewController(0, i))
	}
	return b
}

// PumpInput drains every pending event from src and applies it to the
// addressed controller, ignoring out-of-range device indices.
func (b *MapleBus) PumpInput(src InputSource) {
	if src == nil {
		return
	}
	for _, ev := range src.PollInput() {
		if ev.DeviceIndex < 0 || ev.DeviceIndex >= len(b.Controllers) {
			continue
		}
		b.Controllers[ev.DeviceIndex].HandleInput(ev)
	}
}

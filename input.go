// input.go - the consumed input event stream (spec.md §6, "Input
// stream (consumed)").
//
// Grounded on original_source/src/hw/maple/controller.c's
// controller_input(enum keycode key, int16_t value): the host reports
// a raw key and a signed 16-bit value, positive meaning press/axis
// extent and zero meaning release, leaving all device-specific button
// mapping to the consumer (maple.go's Controller).
package dreamcast

// InputEvent is one host input report: which logical device it targets
// (controller port/unit index), the host keycode that fired, and its
// value - positive for press/axis extent, zero for release, matching
// the original's controller_input signature exactly except for the
// addition of a device index so one stream can address more than one
// controller.
type InputEvent struct {
	DeviceIndex int
	Keycode     int
	Value       int16
}

// InputSource is polled once per core tick (spec.md §5's "host main
// thread... pumping window and input events"); implementations queue
// events as the host's window system reports them and drain the queue
// on PollInput.
type InputSource interface {
	PollInput() []InputEvent
}

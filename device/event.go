package device

// Event is a notification emitted by a driver while it communicates with a device.
//
// Drivers emit events on a best effort basis; callers must not rely on any
// particular event being delivered. The concrete types are VendorEvent,
// ProgressEvent and InfoEvent.
type Event interface {
	isEvent()
}

// VendorEvent carries a vendor specific blob, typically the raw identification
// block read from the device during session setup. Data aliases driver memory
// and is only valid for the duration of the callback; copy it to retain it.
type VendorEvent struct {
	Data []byte
}

// ProgressEvent reports how far a long-running operation has advanced.
// Current never exceeds Maximum, and Maximum may grow while the operation runs.
type ProgressEvent struct {
	Current uint32
	Maximum uint32
}

// InfoEvent identifies the connected device. It is emitted once per session,
// as soon as the model and serial number are known.
type InfoEvent struct {
	Model    uint32
	Firmware uint32
	Serial   uint32
}

func (VendorEvent) isEvent()   {}
func (ProgressEvent) isEvent() {}
func (InfoEvent) isEvent()     {}

// EventFunc receives driver events. Implementations must be fast and must not
// call back into the driver; they run on the goroutine performing the transfer.
type EventFunc func(Event)

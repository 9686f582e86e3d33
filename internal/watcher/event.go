package watcher

import "fmt"

// Kind identifies a FileEvent variant.
type Kind int

const (
	KindCreated Kind = iota
	KindModified
	KindDeleted
	KindMoved
	KindScanStart
	KindScanEnd
	KindError
)

var kindNames = [...]string{
	KindCreated:   "created",
	KindModified:  "modified",
	KindDeleted:   "deleted",
	KindMoved:     "moved",
	KindScanStart: "scan_start",
	KindScanEnd:   "scan_end",
	KindError:     "error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsScan reports whether k marks the start or end of a scan.
func (k Kind) IsScan() bool { return k == KindScanStart || k == KindScanEnd }

// IsError reports whether k is an error notification.
func (k Kind) IsError() bool { return k == KindError }

// FileEvent is a normalized filesystem change notification.
//
// The set of variants is closed: Created, Modified, Deleted, Moved,
// ScanStart, ScanEnd and Error. Consumers switch on the concrete type.
type FileEvent interface {
	Kind() Kind
	// PrimaryPath returns the path used to collapse duplicate events.
	// Scan lifecycle and error events have none and are never collapsed.
	PrimaryPath() (string, bool)

	fileEvent()
}

type Created struct{ Path string }

type Modified struct{ Path string }

type Deleted struct{ Path string }

// Moved is keyed on its source path.
type Moved struct{ From, To string }

type ScanStart struct{ Path string }

type ScanEnd struct {
	Path  string
	Count int
}

type Error struct {
	Path    string
	Message string
}

func (Created) Kind() Kind   { return KindCreated }
func (Modified) Kind() Kind  { return KindModified }
func (Deleted) Kind() Kind   { return KindDeleted }
func (Moved) Kind() Kind     { return KindMoved }
func (ScanStart) Kind() Kind { return KindScanStart }
func (ScanEnd) Kind() Kind   { return KindScanEnd }
func (Error) Kind() Kind     { return KindError }

func (e Created) PrimaryPath() (string, bool)  { return e.Path, true }
func (e Modified) PrimaryPath() (string, bool) { return e.Path, true }
func (e Deleted) PrimaryPath() (string, bool)  { return e.Path, true }
func (e Moved) PrimaryPath() (string, bool)    { return e.From, true }
func (ScanStart) PrimaryPath() (string, bool)  { return "", false }
func (ScanEnd) PrimaryPath() (string, bool)    { return "", false }
func (Error) PrimaryPath() (string, bool)      { return "", false }

func (Created) fileEvent()   {}
func (Modified) fileEvent()  {}
func (Deleted) fileEvent()   {}
func (Moved) fileEvent()     {}
func (ScanStart) fileEvent() {}
func (ScanEnd) fileEvent()   {}
func (Error) fileEvent()     {}

func (e Created) String() string  { return "created " + e.Path }
func (e Modified) String() string { return "modified " + e.Path }
func (e Deleted) String() string  { return "deleted " + e.Path }
func (e Moved) String() string    { return fmt.Sprintf("moved %s -> %s", e.From, e.To) }
func (e ScanStart) String() string {
	return "scan start " + e.Path
}
func (e ScanEnd) String() string {
	return fmt.Sprintf("scan end %s (%d files)", e.Path, e.Count)
}
func (e Error) String() string { return fmt.Sprintf("error %s: %s", e.Path, e.Message) }

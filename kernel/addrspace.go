package kernel

import "fmt"

// AddrSpace stands in for the kernel's umap(proc, segment, virtual, length)
// service (spec.md §6): translating a requesting process's virtual buffer
// into something the driver can read/write directly. Go has no address
// space to cast pointers into, so translation here yields a byte slice view
// rather than a physical address; a nil slice (ok=false) is the umap-failed
// case ("phys_addr_or_0" in spec.md), surfaced to callers as ErrBadArgs.
type AddrSpace interface {
	Umap(procNr int, virtualAddr uintptr, length int) (buf []byte, ok bool)
}

// ErrUmapFailed names a failed Umap translation. The floppy dispatcher
// does not return it: it reports a failed Umap as ErrBadArgs.
var ErrUmapFailed = fmt.Errorf("umap: address translation failed")

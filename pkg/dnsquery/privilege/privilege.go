// Package privilege drops elevated capabilities once a raw socket has been
// opened. The path-trace transport and the spoofed-source UDP transport
// both need CAP_NET_RAW (or root) to create their raw sockets; the engine
// itself never acquires privilege — it expects the caller to have done so,
// or to surface [transport.ErrPrivilegeDenied] cleanly when raw socket
// creation fails.
//
// This is deliberately a thin interface, not the whole-OS capability
// manager the teacher repo's pkg/security implements: a raw-socket caller
// only needs to drop whatever capability it used, once the socket is open,
// grounded on the original client's Capability::reducePriv.
package privilege

// Dropper reduces the calling process's privileges after a raw socket has
// been opened, so it runs for the shortest possible window.
type Dropper interface {
	// Drop releases capability (a named capability such as "cap_net_raw"
	// on Linux), returning an error if the drop itself fails. On Linux the
	// capability is removed from the bounding set, which fails for a process
	// without CAP_SETPCAP; on other platforms Drop always returns an error.
	Drop(capability string) error
}

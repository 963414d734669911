//go:build linux

package privilege

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// linuxDropper drops a named capability via prctl(PR_CAPBSET_DROP, ...),
// grounded on Capability::reducePriv's PR_SET_KEEPCAPS/cap_set_proc
// sequence in the original client. It only covers the bounding-set drop;
// a caller that also wants to clear the effective set should drop the
// capability before opening any further privileged resources.
type linuxDropper struct{}

// NewDropper returns the Linux capability dropper.
func NewDropper() Dropper { return linuxDropper{} }

var capabilityNumbers = map[string]uintptr{
	"cap_net_raw":   unix.CAP_NET_RAW,
	"cap_net_admin": unix.CAP_NET_ADMIN,
}

func (linuxDropper) Drop(capability string) error {
	num, ok := capabilityNumbers[capability]
	if !ok {
		return fmt.Errorf("dnsquery/privilege: unknown capability %q", capability)
	}
	if err := unix.Prctl(unix.PR_CAPBSET_DROP, num, 0, 0, 0); err != nil {
		return fmt.Errorf("dnsquery/privilege: dropping %s: %w", capability, err)
	}
	return nil
}

// Package wireless keeps the station associated with a known network.
//
// Station implements the supervisor's link: Connect scans, joins the
// primary network when it is visible and otherwise the first visible
// alternate, and keeps retrying until associated or cancelled. With no
// network configured the station is host-managed: it reports the link as up
// and leaves association to the operating system. The radio
// itself sits behind the Radio interface; HostRadio maps it onto a host
// network interface whose association is managed by the operating system.
package wireless

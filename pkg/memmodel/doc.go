// Package memmodel detects the host's memory architecture and accounts for
// fractional GPU memory reservations against that architecture's effective
// utilisation cap.
package memmodel

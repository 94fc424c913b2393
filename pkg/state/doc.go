// Package state caches the last known MotionMount state.
//
// The cache is fed exclusively from decoded frames (query answers, write
// echoes and unsolicited pushes). It is written by one goroutine and read
// lock-free by any number of others: each update publishes a new immutable
// DeviceState snapshot.
package state
